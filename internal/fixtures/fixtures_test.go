package fixtures

import (
	"bytes"
	"image"
	_ "image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioIsWAVAndCopied(t *testing.T) {
	a := Audio()
	require.Greater(t, len(a), 44)
	assert.Equal(t, "RIFF", string(a[:4]))
	assert.Equal(t, "WAVE", string(a[8:12]))

	a[0] = 'X'
	assert.Equal(t, byte('R'), Audio()[0])
}

func TestImagesDecode(t *testing.T) {
	imgs := Images()
	require.Len(t, imgs, 3)
	for _, img := range imgs {
		cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
		require.NoError(t, err, img.Name)
		assert.Equal(t, "png", format)
		assert.Equal(t, 16, cfg.Width)
	}
	assert.Equal(t, "placeholder_0.png", imgs[0].Name)
}
