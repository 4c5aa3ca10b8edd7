package export

import (
	"encoding/json"

	"video-parser/internal/batch"
)

// Keys tried in order when flattening a platform payload
var (
	titleKeys  = []string{"title", "caption", "name"}
	authorKeys = []string{"author", "authorName"}
	mediaKeys  = []string{"url", "photoUrl", "video_url", "video"}
	coverKeys  = []string{"cover", "coverUrl", "imgurl"}
)

// ToRecord flattens a batch result. Every platform payload has its own
// shape, so the summary columns are read from the envelope JSON by key.
func ToRecord(r batch.BatchResult) Record {
	rec := Record{
		Index:    r.Index,
		Input:    r.Input,
		URL:      r.URL,
		Platform: r.Platform,
		Status:   r.Status,
		Elapsed:  r.Duration.Milliseconds(),
		Response: r.Response,
	}
	if r.Error != nil {
		rec.Error = r.Error.Error()
	}
	if r.Response == nil {
		return rec
	}
	rec.Code = r.Response.Code
	rec.Msg = r.Response.Msg

	raw, err := json.Marshal(r.Response)
	if err != nil {
		return rec
	}
	var envelope map[string]interface{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return rec
	}

	data := envelope["data"]
	if list, ok := data.([]interface{}); ok {
		data = nil
		if len(list) > 0 {
			data = list[0]
		}
	}
	payload, _ := data.(map[string]interface{})

	rec.Title = firstString(envelope, "title")
	if rec.Title == "" {
		rec.Title = firstString(payload, titleKeys...)
	}
	rec.CoverURL = firstString(envelope, "imgurl")
	if rec.CoverURL == "" {
		rec.CoverURL = firstString(payload, coverKeys...)
	}
	if user, ok := envelope["user"].(map[string]interface{}); ok {
		rec.Author = firstString(user, "name")
	}
	if rec.Author == "" {
		rec.Author = firstString(payload, authorKeys...)
	}
	rec.MediaURL = firstString(payload, mediaKeys...)
	return rec
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
