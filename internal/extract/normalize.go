package extract

import "video-parser/pkg/models"

// Field names a canonical ExtractedMedia field
type Field int

const (
	FieldCaption Field = iota
	FieldTitle
	FieldCoverURL
	FieldAuthorName
	FieldAuthorAvatar
	FieldLikeCount
	FieldCommentCount
	FieldShareCount
	FieldPlayCount
	FieldDuration
	FieldCreateTime
)

// FieldMapping maps source keys, in priority order, onto one canonical field
type FieldMapping struct {
	Keys  []string
	Field Field
}

// DefaultFields is the source-key dictionary shared by the known page layouts
func DefaultFields() []FieldMapping {
	return []FieldMapping{
		{Keys: []string{"caption"}, Field: FieldCaption},
		{Keys: []string{"title"}, Field: FieldTitle},
		{Keys: []string{"coverUrl", "cover", "poster", "thumbnail", "previewUrl"}, Field: FieldCoverURL},
		{Keys: []string{"name", "nickname", "authorName", "author"}, Field: FieldAuthorName},
		{Keys: []string{"headUrl", "avatar"}, Field: FieldAuthorAvatar},
		{Keys: []string{"likeCount", "like"}, Field: FieldLikeCount},
		{Keys: []string{"commentCount"}, Field: FieldCommentCount},
		{Keys: []string{"shareCount"}, Field: FieldShareCount},
		{Keys: []string{"playCount", "viewCount"}, Field: FieldPlayCount},
		{Keys: []string{"duration"}, Field: FieldDuration},
		{Keys: []string{"createTime", "timestamp"}, Field: FieldCreateTime},
	}
}

// MapFields copies recognised keys of source into target.
// A field already set on target is never overwritten.
func MapFields(source *Object, target *models.ExtractedMedia, fields []FieldMapping) {
	if source == nil || target == nil {
		return
	}
	for _, m := range fields {
		for _, key := range m.Keys {
			v, ok := source.Get(key)
			if !ok || v == nil {
				continue
			}
			if assign(target, m.Field, v) {
				break
			}
		}
	}
}

// assign stores v into field when the field is unset and v has the right shape
func assign(t *models.ExtractedMedia, field Field, v interface{}) bool {
	switch field {
	case FieldCaption:
		return setText(&t.Caption, v)
	case FieldTitle:
		return setText(&t.Title, v)
	case FieldAuthorName:
		return setText(&t.AuthorName, v)
	case FieldCoverURL:
		return setURL(&t.CoverURL, v)
	case FieldAuthorAvatar:
		return setURL(&t.AuthorAvatar, v)
	case FieldLikeCount:
		return setNumber(&t.LikeCount, v)
	case FieldCommentCount:
		return setNumber(&t.CommentCount, v)
	case FieldShareCount:
		return setNumber(&t.ShareCount, v)
	case FieldPlayCount:
		return setNumber(&t.PlayCount, v)
	case FieldDuration:
		return setNumber(&t.Duration, v)
	case FieldCreateTime:
		return setNumber(&t.CreateTime, v)
	}
	return false
}

func setText(dst *string, v interface{}) bool {
	if *dst != "" {
		return true
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return false
	}
	*dst = s
	return true
}

func setURL(dst *string, v interface{}) bool {
	if *dst != "" {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = CleanURL(s)
	if !IsHTTPURL(s) {
		return false
	}
	*dst = s
	return true
}

func setNumber(dst **int64, v interface{}) bool {
	if *dst != nil {
		return true
	}
	n, ok := AsInt64(v)
	if !ok {
		return false
	}
	*dst = &n
	return true
}
