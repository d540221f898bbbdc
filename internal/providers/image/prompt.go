package image

import (
	"strings"
)

// DefaultNegativePrompt captures undesirable artefacts we want the model to avoid.
const DefaultNegativePrompt = "low quality, blurry, distorted, photorealistic faces, real people, text artefacts, watermark, logo"

// BuildEntityPrompt converts an entity phrase into a text-to-image instruction
// that keeps results abstract.
func BuildEntityPrompt(entity string) string {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return ""
	}
	lines := []string{
		entity + ".",
		"Abstract, painterly interpretation with expressive color and texture.",
		"No text, no logos, no recognizable people.",
	}
	return strings.Join(lines, " ")
}
