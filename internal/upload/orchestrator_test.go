package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
	"github.com/fastevo/fastevo-upload-service/internal/domain/port"
	"github.com/fastevo/fastevo-upload-service/internal/thumbnail"
	"github.com/fastevo/fastevo-upload-service/internal/transfer"
)

// mp4Source fabricates a source that sniffs as video.
func mp4Source(size int, mimeType string) *entity.MediaSource {
	data := make([]byte, size)
	if size >= 12 {
		copy(data[4:8], "ftyp")
		copy(data[8:12], "isom")
	}
	return entity.NewMediaSource("clip.mp4", mimeType, bytes.NewReader(data), int64(size))
}

// fakeDecoder mirrors the native capability for orchestrator tests.
type fakeDecoder struct {
	duration float64
	img      image.Image
	openErr  error
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
	return m.d.img, nil
}
func (m *fakeMedia) Close() error { return nil }

// unusableEngine is a FrameEngine that never initializes; tests route the
// engine strategy around it by requesting the native method.
type unusableEngine struct{}

func (unusableEngine) Load(context.Context) error                { return errors.New("unavailable") }
func (unusableEngine) WriteInput(string, io.Reader) error        { return errors.New("unavailable") }
func (unusableEngine) ReadOutput(string) ([]byte, error)         { return nil, errors.New("unavailable") }
func (unusableEngine) Remove(string)                             {}
func (unusableEngine) ProbeDuration(context.Context, string) (float64, error) {
	return 0, errors.New("unavailable")
}
func (unusableEngine) ExtractFrame(context.Context, string, float64, entity.ThumbnailFormat, string) error {
	return errors.New("unavailable")
}

// memoryStore collects thumbnails in memory.
type memoryStore struct {
	objects map[string][]byte
	putErr  error
}

func newMemoryStore() *memoryStore { return &memoryStore{objects: map[string][]byte{}} }

func (s *memoryStore) PutThumbnail(_ context.Context, key string, r io.Reader, _ int64, contentType string) (entity.ThumbnailRef, error) {
	if s.putErr != nil {
		return entity.ThumbnailRef{}, s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return entity.ThumbnailRef{}, err
	}
	s.objects[key] = data
	return entity.ThumbnailRef{Key: key, URL: "https://cdn.test/" + key, ContentType: contentType}, nil
}

func acceptingServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}

func brightImage() image.Image {
	dc := gg.NewContext(48, 48)
	dc.SetRGB(0.9, 0.5, 0.2)
	dc.Clear()
	return dc.Image()
}

func newOrchestrator(client *http.Client, decoder port.FrameDecoder, store port.ThumbnailStore) *Orchestrator {
	log := zap.NewNop()
	executor := transfer.NewExecutor(client, transfer.Config{}, log)
	engine := thumbnail.New(unusableEngine{}, decoder, log, thumbnail.Config{})
	return NewOrchestrator(executor, engine, store, log)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	var hits atomic.Int32
	srv := acceptingServer(t, &hits)
	defer srv.Close()

	o := newOrchestrator(srv.Client(), &fakeDecoder{}, newMemoryStore())
	src := entity.NewMediaSource("notes.txt", "text/plain", bytes.NewReader([]byte("hi")), 2)

	_, err := o.Upload(context.Background(), Request{
		Source: src,
		Target: &entity.PresignedTarget{URL: srv.URL},
	})
	require.Error(t, err)
	assert.Equal(t, entity.KindUnsupportedFileType, entity.KindOf(err))
	// Rejected before any network call.
	assert.EqualValues(t, 0, hits.Load())
}

func TestUploadVideoWithThumbnails(t *testing.T) {
	srv := acceptingServer(t, nil)
	defer srv.Close()

	store := newMemoryStore()
	o := newOrchestrator(srv.Client(), &fakeDecoder{duration: 30, img: brightImage()}, store)

	var thumbCalls int
	var finalThumbs []entity.ThumbnailRef
	var progress []entity.TransferProgress

	result, err := o.Upload(context.Background(), Request{
		Source:      mp4Source(4096, "video/mp4"),
		Target:      &entity.PresignedTarget{URL: srv.URL},
		Thumbnails:  &entity.ThumbnailRequest{Method: entity.MethodNative},
		KeyPrefix:   "user1/job1",
		OriginalKey: "user1/clip.mp4",
		OnProgress:  func(p entity.TransferProgress) { progress = append(progress, p) },
		OnThumbnails: func(refs []entity.ThumbnailRef) {
			thumbCalls++
			finalThumbs = refs
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Thumbnails, 5)
	assert.Equal(t, 30.0, result.Duration)
	assert.Len(t, store.objects, 5)

	assert.Equal(t, 1, thumbCalls)
	assert.Len(t, finalThumbs, 5)

	// Progress stays monotonic, ends at 100, and walks the phases in order.
	last := -1
	var sawGenerating, sawGenerated bool
	for _, p := range progress {
		assert.GreaterOrEqual(t, p.Percentage, last)
		last = p.Percentage
		switch p.Status {
		case entity.StatusGeneratingThumbnails:
			sawGenerating = true
		case entity.StatusThumbnailsGenerated:
			sawGenerated = true
		}
	}
	assert.Equal(t, 100, last)
	assert.True(t, sawGenerating)
	assert.True(t, sawGenerated)
	assert.Equal(t, entity.StatusThumbnailsGenerated, progress[len(progress)-1].Status)
}

func TestUploadZeroByteVideo(t *testing.T) {
	srv := acceptingServer(t, nil)
	defer srv.Close()

	// Zero duration media schedules no snapshots; the upload still succeeds
	// with an empty thumbnail list.
	o := newOrchestrator(srv.Client(), &fakeDecoder{duration: 0, img: brightImage()}, newMemoryStore())

	var finalThumbs []entity.ThumbnailRef
	result, err := o.Upload(context.Background(), Request{
		Source:       mp4Source(0, "video/mp4"),
		Target:       &entity.PresignedTarget{URL: srv.URL},
		Thumbnails:   &entity.ThumbnailRequest{SnapshotCount: 5, Method: entity.MethodNative},
		OnThumbnails: func(refs []entity.ThumbnailRef) { finalThumbs = refs },
	})
	require.NoError(t, err)
	assert.Empty(t, result.Thumbnails)
	assert.NotNil(t, finalThumbs)
	assert.Empty(t, finalThumbs)
}

func TestUploadThumbnailFailureDegrades(t *testing.T) {
	srv := acceptingServer(t, nil)
	defer srv.Close()

	o := newOrchestrator(srv.Client(), &fakeDecoder{openErr: errors.New("no codec")}, newMemoryStore())

	var thumbCalls int
	var statuses []entity.UploadStatus
	result, err := o.Upload(context.Background(), Request{
		Source:       mp4Source(2048, "video/mp4"),
		Target:       &entity.PresignedTarget{URL: srv.URL},
		Thumbnails:   &entity.ThumbnailRequest{Method: entity.MethodNative},
		OnProgress:   func(p entity.TransferProgress) { statuses = append(statuses, p.Status) },
		OnThumbnails: func([]entity.ThumbnailRef) { thumbCalls++ },
	})
	require.NoError(t, err)
	assert.Empty(t, result.Thumbnails)
	assert.Equal(t, 1, thumbCalls)
	assert.Contains(t, statuses, entity.StatusErrorGeneratingThumbnails)
}

func TestUploadImagePassthroughThumbnail(t *testing.T) {
	srv := acceptingServer(t, nil)
	defer srv.Close()

	o := newOrchestrator(srv.Client(), &fakeDecoder{}, newMemoryStore())
	src := entity.NewMediaSource("photo.jpg", "image/jpeg", bytes.NewReader(make([]byte, 512)), 512)

	result, err := o.Upload(context.Background(), Request{
		Source:      src,
		Target:      &entity.PresignedTarget{URL: srv.URL},
		Thumbnails:  &entity.ThumbnailRequest{},
		OriginalKey: "user1/photo.jpg",
	})
	require.NoError(t, err)
	require.Len(t, result.Thumbnails, 1)
	assert.Equal(t, "user1/photo.jpg", result.Thumbnails[0].Key)
	assert.Equal(t, "image/jpeg", result.Thumbnails[0].ContentType)
}

func TestUploadTransferFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	o := newOrchestrator(srv.Client(), &fakeDecoder{duration: 30, img: brightImage()}, newMemoryStore())

	var thumbCalls int
	var statuses []entity.UploadStatus
	_, err := o.Upload(context.Background(), Request{
		Source:       mp4Source(2048, "video/mp4"),
		Target:       &entity.PresignedTarget{URL: srv.URL},
		Thumbnails:   &entity.ThumbnailRequest{Method: entity.MethodNative},
		OnProgress:   func(p entity.TransferProgress) { statuses = append(statuses, p.Status) },
		OnThumbnails: func([]entity.ThumbnailRef) { thumbCalls++ },
	})
	require.Error(t, err)
	assert.Equal(t, entity.KindNonSuccessStatus, entity.KindOf(err))
	// No thumbnail phase after a failed transfer.
	assert.Equal(t, 0, thumbCalls)
	assert.Contains(t, statuses, entity.StatusErrorUploading)
	assert.NotContains(t, statuses, entity.StatusGeneratingThumbnails)
}

func TestUploadAudioSkipsThumbnails(t *testing.T) {
	srv := acceptingServer(t, nil)
	defer srv.Close()

	o := newOrchestrator(srv.Client(), &fakeDecoder{}, newMemoryStore())
	src := entity.NewMediaSource("song.mp3", "audio/mpeg", bytes.NewReader(make([]byte, 256)), 256)

	var statuses []entity.UploadStatus
	result, err := o.Upload(context.Background(), Request{
		Source:     src,
		Target:     &entity.PresignedTarget{URL: srv.URL},
		Thumbnails: &entity.ThumbnailRequest{},
		OnProgress: func(p entity.TransferProgress) { statuses = append(statuses, p.Status) },
	})
	require.NoError(t, err)
	assert.Empty(t, result.Thumbnails)
	require.NotEmpty(t, statuses)
	assert.Equal(t, entity.StatusUploadCompleted, statuses[len(statuses)-1])
}
