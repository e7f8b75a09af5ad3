package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"testing"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
	"github.com/fastevo/fastevo-upload-service/internal/domain/port"
)

func pngBytes(t *testing.T, r, g, b float64) []byte {
	t.Helper()
	dc := gg.NewContext(32, 32)
	dc.SetRGB(r, g, b)
	dc.Clear()
	var buf bytes.Buffer
	require.NoError(t, dc.EncodePNG(&buf))
	return buf.Bytes()
}

func testSource() *entity.MediaSource {
	data := make([]byte, 256)
	return entity.NewMediaSource("clip.mp4", "video/mp4", bytes.NewReader(data), int64(len(data)))
}

// fakeFrameEngine is an in-memory FrameEngine.
type fakeFrameEngine struct {
	mu        sync.Mutex
	loadErr   error
	loadCalls int
	duration  float64
	probeErr  error
	frameData []byte
	failAt    map[int]error // extract call index -> error
	extracts  int
	files     map[string][]byte
	removed   []string
}

func newFakeFrameEngine(frameData []byte, duration float64) *fakeFrameEngine {
	return &fakeFrameEngine{frameData: frameData, duration: duration, files: map[string][]byte{}}
}

func (f *fakeFrameEngine) Load(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	return f.loadErr
}

func (f *fakeFrameEngine) WriteInput(name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = data
	return nil
}

func (f *fakeFrameEngine) ExtractFrame(_ context.Context, _ string, _ float64, _ entity.ThumbnailFormat, outputName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.extracts
	f.extracts++
	if err, ok := f.failAt[idx]; ok {
		return err
	}
	f.files[outputName] = f.frameData
	return nil
}

func (f *fakeFrameEngine) ReadOutput(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("no such output %s", name)
	}
	return data, nil
}

func (f *fakeFrameEngine) Remove(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, name)
	f.removed = append(f.removed, name)
}

func (f *fakeFrameEngine) ProbeDuration(context.Context, string) (float64, error) {
	if f.probeErr != nil {
		return 0, f.probeErr
	}
	return f.duration, nil
}

// fakeDecoder is an in-memory FrameDecoder.
type fakeDecoder struct {
	openErr  error
	duration float64
	img      image.Image
	frameErr error
}

func (d *fakeDecoder) Open(context.Context, *entity.MediaSource) (port.DecodedMedia, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return &fakeMedia{d: d}, nil
}

type fakeMedia struct{ d *fakeDecoder }

func (m *fakeMedia) Duration() float64 { return m.d.duration }

func (m *fakeMedia) FrameAt(context.Context, float64) (image.Image, error) {
	if m.d.frameErr != nil {
		return nil, m.d.frameErr
	}
	return m.d.img, nil
}

func (m *fakeMedia) Close() error { return nil }

func grayImage(v float64) image.Image {
	dc := gg.NewContext(32, 32)
	dc.SetRGB(v, v, v)
	dc.Clear()
	return dc.Image()
}

func newTestEngine(engine port.FrameEngine, decoder port.FrameDecoder) *Engine {
	return New(engine, decoder, zap.NewNop(), Config{})
}

func TestGenerateNative(t *testing.T) {
	decoder := &fakeDecoder{duration: 30, img: grayImage(0.8)}
	eng := newTestEngine(newFakeFrameEngine(nil, 0), decoder)

	frames, err := eng.Generate(context.Background(), testSource(), entity.ThumbnailRequest{
		Method: entity.MethodNative,
	})
	require.NoError(t, err)
	require.Len(t, frames, 5)
	for i, f := range frames {
		assert.Equal(t, entity.StrategyNative, f.Strategy)
		assert.False(t, f.MostlyBlack)
		assert.Equal(t, 30.0, f.Duration)
		assert.NotEmpty(t, f.Data)
		if i > 0 {
			assert.Greater(t, f.Timestamp, frames[i-1].Timestamp)
		}
	}
}

func TestGenerateNativeAllBlack(t *testing.T) {
	decoder := &fakeDecoder{duration: 30, img: grayImage(0)}
	eng := newTestEngine(newFakeFrameEngine(nil, 0), decoder)

	_, err := eng.Generate(context.Background(), testSource(), entity.ThumbnailRequest{
		Method: entity.MethodNative,
	})
	require.Error(t, err)
	assert.Equal(t, entity.KindAllFramesBlack, entity.KindOf(err))
}

func TestGenerateNativeZeroDuration(t *testing.T) {
	decoder := &fakeDecoder{duration: 0, img: grayImage(0.8)}
	eng := newTestEngine(newFakeFrameEngine(nil, 0), decoder)

	frames, err := eng.Generate(context.Background(), testSource(), entity.ThumbnailRequest{
		Method: entity.MethodNative,
	})
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestGenerateEngine(t *testing.T) {
	fe := newFakeFrameEngine(pngBytes(t, 0.9, 0.9, 0.9), 30)
	eng := newTestEngine(fe, &fakeDecoder{})

	frames, err := eng.Generate(context.Background(), testSource(), entity.ThumbnailRequest{
		Method: entity.MethodEngine,
	})
	require.NoError(t, err)
	require.Len(t, frames, 5)
	for _, f := range frames {
		assert.Equal(t, entity.StrategyEngine, f.Strategy)
		assert.False(t, f.MostlyBlack)
		assert.Equal(t, 32, f.Width)
	}

	// Guaranteed cleanup: the input and every per-frame output are removed.
	assert.Empty(t, fe.files)
	assert.Len(t, fe.removed, 6)
}

func TestGenerateEngineSkipsFailedFrames(t *testing.T) {
	fe := newFakeFrameEngine(pngBytes(t, 0.9, 0.9, 0.9), 30)
	fe.failAt = map[int]error{1: errors.New("seek failed"), 3: errors.New("seek failed")}
	eng := newTestEngine(fe, &fakeDecoder{})

	frames, err := eng.Generate(context.Background(), testSource(), entity.ThumbnailRequest{
		Method: entity.MethodEngine,
	})
	require.NoError(t, err)
	assert.Len(t, frames, 3)
}

func TestGenerateEngineDefaultDurationWhenProbeFails(t *testing.T) {
	fe := newFakeFrameEngine(pngBytes(t, 0.9, 0.9, 0.9), 0)
	fe.probeErr = errors.New("no duration")
	eng := newTestEngine(fe, &fakeDecoder{})

	frames, err := eng.Generate(context.Background(), testSource(), entity.ThumbnailRequest{
		Method: entity.MethodEngine,
	})
	require.NoError(t, err)
	require.NotEmpty(t, frames)
	for _, f := range frames {
		assert.Equal(t, DefaultEngineDuration, f.Duration)
	}
}

func TestGenerateAutoFallsBackOnBlackFrames(t *testing.T) {
	fe := newFakeFrameEngine(pngBytes(t, 0, 0, 0), 30)
	decoder := &fakeDecoder{duration: 30, img: grayImage(0.8)}
	eng := newTestEngine(fe, decoder)

	frames, err := eng.Generate(context.Background(), testSource(), entity.ThumbnailRequest{})
	require.NoError(t, err)
	require.Len(t, frames, 5)
	for _, f := range frames {
		assert.Equal(t, entity.StrategyNative, f.Strategy)
		assert.False(t, f.MostlyBlack)
	}
}

func TestGenerateAutoFallsBackWhenEngineYieldsNoFrames(t *testing.T) {
	// The engine loads and probes fine but every per-frame extraction fails:
	// an empty batch must count as a failed attempt, not an empty success.
	fe := newFakeFrameEngine(nil, 30)
	fe.failAt = map[int]error{}
	for i := 0; i < 5; i++ {
		fe.failAt[i] = errors.New("unsupported codec")
	}
	decoder := &fakeDecoder{duration: 30, img: grayImage(0.8)}
	eng := newTestEngine(fe, decoder)

	frames, err := eng.Generate(context.Background(), testSource(), entity.ThumbnailRequest{})
	require.NoError(t, err)
	require.Len(t, frames, 5)
	for _, f := range frames {
		assert.Equal(t, entity.StrategyNative, f.Strategy)
	}
}

func TestGenerateEngineAllBlack(t *testing.T) {
	fe := newFakeFrameEngine(pngBytes(t, 0, 0, 0), 30)
	eng := newTestEngine(fe, &fakeDecoder{})

	_, err := eng.Generate(context.Background(), testSource(), entity.ThumbnailRequest{
		Method: entity.MethodEngine,
	})
	require.Error(t, err)
	assert.Equal(t, entity.KindAllFramesBlack, entity.KindOf(err))
}

func TestGenerateAutoFallsBackOnEngineInitFailure(t *testing.T) {
	fe := newFakeFrameEngine(nil, 0)
	fe.loadErr = errors.New("binary not found")
	decoder := &fakeDecoder{duration: 30, img: grayImage(0.8)}
	eng := newTestEngine(fe, decoder)

	frames, err := eng.Generate(context.Background(), testSource(), entity.ThumbnailRequest{})
	require.NoError(t, err)
	require.Len(t, frames, 5)
	assert.Equal(t, entity.StrategyNative, frames[0].Strategy)
}

func TestGenerateAutoBothStrategiesFail(t *testing.T) {
	fe := newFakeFrameEngine(nil, 0)
	fe.loadErr = errors.New("binary not found")
	decoder := &fakeDecoder{openErr: errors.New("no codec")}
	eng := newTestEngine(fe, decoder)

	_, err := eng.Generate(context.Background(), testSource(), entity.ThumbnailRequest{})
	require.Error(t, err)
	assert.Equal(t, entity.KindThumbnailGenerationFailed, entity.KindOf(err))
}

func TestGenerateEngineExplicitInitFailurePropagates(t *testing.T) {
	fe := newFakeFrameEngine(nil, 0)
	fe.loadErr = errors.New("binary not found")
	eng := newTestEngine(fe, &fakeDecoder{})

	_, err := eng.Generate(context.Background(), testSource(), entity.ThumbnailRequest{
		Method: entity.MethodEngine,
	})
	require.Error(t, err)
	assert.Equal(t, entity.KindEngineInitializationFailed, entity.KindOf(err))
}

func TestPreload(t *testing.T) {
	ok := newTestEngine(newFakeFrameEngine(nil, 30), &fakeDecoder{})
	assert.True(t, ok.Preload(context.Background()))

	fe := newFakeFrameEngine(nil, 0)
	fe.loadErr = errors.New("boom")
	failing := newTestEngine(fe, &fakeDecoder{})
	assert.False(t, failing.Preload(context.Background()))
}
