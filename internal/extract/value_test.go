package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-parser/pkg/models"
)

func TestDecodeOrderedKeepsKeyOrder(t *testing.T) {
	v, err := DecodeOrdered(`{"z": 1, "a": {"y": true, "b": null}, "m": [1, "two"]}`)
	require.NoError(t, err)

	obj, ok := v.(*Object)
	require.True(t, ok)
	assert.Equal(t, []string{"z", "a", "m"}, obj.Keys())
	assert.Equal(t, []string{"y", "b"}, LookupObject(obj, "a").Keys())
	assert.Equal(t, json.Number("1"), Lookup(obj, "z"))
	assert.Equal(t, "two", LookupString(obj, "m", 1))
	assert.Nil(t, Lookup(obj, "m", 5))
	assert.Nil(t, Lookup(obj, "z", "deeper"))

	out, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":{"y":true,"b":null},"m":[1,"two"]}`, string(out))
}

func TestDecodeOrderedRepeatedKey(t *testing.T) {
	v, err := DecodeOrdered(`{"a": 1, "b": 2, "a": 3}`)
	require.NoError(t, err)

	obj := v.(*Object)
	assert.Equal(t, []string{"a", "b"}, obj.Keys())
	assert.Equal(t, "3", LookupString(obj, "a"))
	assert.Equal(t, 2, obj.Len())
}

func TestDecodeOrderedRejectsTrailingData(t *testing.T) {
	_, err := DecodeOrdered(`{"a": 1} {"b": 2}`)
	assert.Error(t, err)

	_, err = DecodeOrdered(`{"a": }`)
	assert.Error(t, err)
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		in   interface{}
		want int64
		ok   bool
	}{
		{json.Number("42"), 42, true},
		{json.Number("1.5e3"), 1500, true},
		{" 7 ", 7, true},
		{"12.9", 12, true},
		{"", 0, false},
		{"many", 0, false},
		{true, 0, false},
		{nil, 0, false},
		{"9223372036854775807", 9223372036854775807, true},
		{"1e30", 0, false},
		{json.Number("-1e30"), 0, false},
		{"9.3e18", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"-Inf", 0, false},
	}

	for _, test := range tests {
		got, ok := AsInt64(test.in)
		assert.Equal(t, test.ok, ok, "%v", test.in)
		assert.Equal(t, test.want, got, "%v", test.in)
	}
}

func TestTruthy(t *testing.T) {
	assert.False(t, truthy(nil))
	assert.False(t, truthy(false))
	assert.False(t, truthy(""))
	assert.False(t, truthy(json.Number("0")))
	assert.True(t, truthy(json.Number("0.5")))
	assert.True(t, truthy("x"))
	assert.True(t, truthy(NewObject()))
	assert.True(t, truthy([]interface{}{}))
}

func TestMapFieldsFirstWriterWins(t *testing.T) {
	v, err := DecodeOrdered(`{
		"title": "",
		"caption": "from caption",
		"coverUrl": "/relative.jpg",
		"cover": "https:\/\/cdn.example.com\/c.jpg",
		"nickname": "nick",
		"likeCount": "1,000",
		"like": 9,
		"viewCount": "250",
		"timestamp": 1700000000
	}`)
	require.NoError(t, err)

	media := &models.ExtractedMedia{AuthorName: "preset"}
	MapFields(v.(*Object), media, DefaultFields())

	assert.Equal(t, "from caption", media.Caption)
	assert.Empty(t, media.Title)
	assert.Equal(t, "https://cdn.example.com/c.jpg", media.CoverURL)
	assert.Equal(t, "preset", media.AuthorName)
	require.NotNil(t, media.LikeCount)
	assert.Equal(t, int64(9), *media.LikeCount)
	require.NotNil(t, media.PlayCount)
	assert.Equal(t, int64(250), *media.PlayCount)
	require.NotNil(t, media.CreateTime)
	assert.Equal(t, int64(1700000000), *media.CreateTime)
	assert.Nil(t, media.Duration)
}

func TestMapFieldsNilSource(t *testing.T) {
	media := &models.ExtractedMedia{}
	MapFields(nil, media, DefaultFields())
	assert.Equal(t, &models.ExtractedMedia{}, media)
}

func TestCleanURL(t *testing.T) {
	assert.Equal(t, "https://a.example.com/x/y.mp4", CleanURL(`https:\/\/a.example.com\/x\/y.mp4`))
	assert.True(t, IsHTTPURL("http://a.example.com"))
	assert.False(t, IsHTTPURL("//a.example.com/x"))
	assert.False(t, IsHTTPURL("https://"))
	assert.True(t, IsValidVideoURL("https://a.example.com/v.mp4"))
	assert.False(t, IsValidVideoURL("https://a.example.com/v.jpg"))
}

func TestObjectUnmarshalKeepsOrder(t *testing.T) {
	var out struct {
		URLs *Object `json:"urls"`
		None *Object `json:"none"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"urls":{"hd":"b.mp4","sd":"a.mp4"},"none":null}`), &out))

	assert.Equal(t, []string{"hd", "sd"}, out.URLs.Keys())
	assert.Equal(t, []interface{}{"b.mp4", "a.mp4"}, out.URLs.Values())
	assert.Nil(t, out.None)
	assert.Nil(t, out.None.Values())

	var obj Object
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &obj))
}
