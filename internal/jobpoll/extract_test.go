package jobpoll

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var doc any
	require.NoError(t, dec.Decode(&doc))
	return doc
}

func TestDefaultResultOrder(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "nested songs win",
			doc:  `{"data":{"output":{"songs":[{"song_path":"a"},{"title":"x"},{"song_path":"b"}],"audio_url":"c"}}}`,
			want: []string{"a", "b"},
		},
		{
			name: "nested audio url",
			doc:  `{"data":{"output":{"audio_url":"c"},"outputs":[{"url":"d"}]}}`,
			want: []string{"c"},
		},
		{
			name: "nested outputs list",
			doc:  `{"data":{"outputs":[{"url":"d"}]}}`,
			want: []string{"d"},
		},
		{
			name: "nested works resource",
			doc:  `{"data":{"works":[{"resource":{"resource":"e"}}]}}`,
			want: []string{"e"},
		},
		{
			name: "top level audio url",
			doc:  `{"data":{"status":"completed"},"output":{"audio_url":"f"}}`,
			want: []string{"f"},
		},
		{
			name: "top level works",
			doc:  `{"works":[{"resource":{"resource":"g"}}]}`,
			want: []string{"g"},
		},
		{
			name: "nothing",
			doc:  `{"data":{"output":{"songs":[]}}}`,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collect(DefaultResult(), decode(t, tt.doc)))
		})
	}
}

func TestFieldFlattensScalarArrays(t *testing.T) {
	doc := decode(t, `{"output":{"image_urls":["u1","",{"x":1},"u2"],"id":42}}`)

	assert.Equal(t, []string{"u1", "u2"}, Field("output", "image_urls")(doc))
	assert.Equal(t, []string{"42"}, Field("output", "id")(doc))
	assert.Nil(t, Field("output", "missing")(doc))
	assert.Nil(t, Field("output", 3)(doc))
}

func TestFirstSkipsEmptyValues(t *testing.T) {
	doc := decode(t, `{"data":{"task_id":""},"task_id":"top"}`)

	assert.Equal(t, "top", first(DefaultTaskID(), doc))
}
