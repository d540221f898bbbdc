// Package fixtures embeds the deterministic media used by stand-in providers.
package fixtures

import (
	"embed"
	"io/fs"
	"path"
	"sort"
)

//go:embed data/mock_audio.wav
var mockAudio []byte

//go:embed data/images/*.png
var imageFS embed.FS

// Image is one embedded placeholder image.
type Image struct {
	Name string
	Data []byte
}

// Audio returns a copy of the stand-in audio clip (WAV).
func Audio() []byte {
	return append([]byte(nil), mockAudio...)
}

// Images returns the placeholder images in name order.
func Images() []Image {
	entries, err := fs.ReadDir(imageFS, "data/images")
	if err != nil {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	out := make([]Image, 0, len(entries))
	for _, e := range entries {
		data, err := imageFS.ReadFile(path.Join("data/images", e.Name()))
		if err != nil {
			continue
		}
		out = append(out, Image{Name: e.Name(), Data: data})
	}
	return out
}
