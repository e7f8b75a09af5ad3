package entity

import (
	"fmt"
	"io"
	"os"
)

// MediaSource is a seekable, sliceable byte source with a known length and an
// optional declared MIME type. It is read-only for the duration of an
// operation; components take slices or section readers, never ownership.
type MediaSource struct {
	Name     string
	MimeType string

	reader io.ReaderAt
	size   int64
	closer io.Closer
}

func NewMediaSource(name, mimeType string, r io.ReaderAt, size int64) *MediaSource {
	return &MediaSource{Name: name, MimeType: mimeType, reader: r, size: size}
}

// OpenFileSource opens path as a media source. The caller owns the returned
// source and must Close it.
func OpenFileSource(path, mimeType string) (*MediaSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat media file: %w", err)
	}
	return &MediaSource{
		Name:     info.Name(),
		MimeType: mimeType,
		reader:   f,
		size:     info.Size(),
		closer:   f,
	}, nil
}

func (m *MediaSource) Size() int64 { return m.size }

// Reader returns a fresh reader over the full byte range. Each call is
// independent; concurrent readers do not share a cursor.
func (m *MediaSource) Reader() io.Reader {
	return io.NewSectionReader(m.reader, 0, m.size)
}

// ReadAt implements io.ReaderAt over the underlying source.
func (m *MediaSource) ReadAt(p []byte, off int64) (int, error) {
	return m.reader.ReadAt(p, off)
}

// Head reads up to n bytes from the start of the source without disturbing
// any other reader.
func (m *MediaSource) Head(n int) ([]byte, error) {
	if int64(n) > m.size {
		n = int(m.size)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(io.NewSectionReader(m.reader, 0, int64(n)), buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (m *MediaSource) Close() error {
	if m.closer != nil {
		return m.closer.Close()
	}
	return nil
}
