package nativedecode

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
)

func pngSource(t *testing.T) *entity.MediaSource {
	t.Helper()
	dc := gg.NewContext(32, 24)
	dc.SetRGB(0.2, 0.6, 0.8)
	dc.Clear()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, dc.Image()))
	return entity.NewMediaSource("frame.png", "image/png", bytes.NewReader(buf.Bytes()), int64(buf.Len()))
}

func TestOpenStillImage(t *testing.T) {
	d := New(zap.NewNop())

	media, err := d.Open(context.Background(), pngSource(t))
	require.NoError(t, err)
	defer media.Close()

	assert.Equal(t, 0.0, media.Duration())

	// Any timestamp yields the single decoded frame.
	for _, ts := range []float64{0, 1.5, 300} {
		img, err := media.FrameAt(context.Background(), ts)
		require.NoError(t, err)
		bounds := img.Bounds()
		assert.Equal(t, 32, bounds.Dx())
		assert.Equal(t, 24, bounds.Dy())
	}
}

func TestOpenCorruptImage(t *testing.T) {
	d := New(zap.NewNop())
	src := entity.NewMediaSource("broken.png", "image/png", bytes.NewReader([]byte("not an image")), 12)

	_, err := d.Open(context.Background(), src)
	require.Error(t, err)
}

func TestOpenOpaqueVideo(t *testing.T) {
	d := New(zap.NewNop())
	// Not a parseable container: the probe fails and duration degrades to 0,
	// but opening still succeeds.
	src := entity.NewMediaSource("clip.mp4", "video/mp4", bytes.NewReader(make([]byte, 64)), 64)

	media, err := d.Open(context.Background(), src)
	require.NoError(t, err)
	defer media.Close()

	assert.Equal(t, 0.0, media.Duration())

	_, err = media.FrameAt(context.Background(), 1.0)
	require.Error(t, err)
	assert.Equal(t, entity.KindCaptureBackendUnavailable, entity.KindOf(err))
}
