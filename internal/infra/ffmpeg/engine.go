package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
)

// Engine implements the decode/encode capability over the ffmpeg binary. A
// private work directory serves as its filesystem namespace: callers write
// inputs under names of their choosing, extract one frame per call, read the
// encoded bytes back and remove both files.
type Engine struct {
	workDir string
	quality int
	logger  *zap.Logger

	// Load is single-flight: every caller shares one initialization and
	// observes its result.
	loadOnce    sync.Once
	loadErr     error
	ffmpegPath  string
	ffprobePath string
}

func NewEngine(workDir string, quality int, logger *zap.Logger) *Engine {
	if quality <= 0 {
		quality = 2
	}
	return &Engine{workDir: workDir, quality: quality, logger: logger}
}

func (e *Engine) Load(_ context.Context) error {
	e.loadOnce.Do(func() {
		if err := os.MkdirAll(e.workDir, 0755); err != nil {
			e.loadErr = fmt.Errorf("create engine workdir: %w", err)
			return
		}
		ffmpeg, err := exec.LookPath("ffmpeg")
		if err != nil {
			e.loadErr = fmt.Errorf("ffmpeg binary not found: %w", err)
			return
		}
		e.ffmpegPath = ffmpeg

		ffprobe, err := exec.LookPath("ffprobe")
		if err != nil {
			// Duration probing degrades; extraction still works.
			e.logger.Warn("ffprobe binary not found, duration probing disabled", zap.Error(err))
		} else {
			e.ffprobePath = ffprobe
		}
		e.logger.Info("ffmpeg engine loaded", zap.String("workdir", e.workDir))
	})
	return e.loadErr
}

func (e *Engine) WriteInput(name string, r io.Reader) error {
	path, err := e.resolve(name)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create engine input: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write engine input: %w", err)
	}
	return nil
}

// ExtractFrame seeks to timestamp and encodes exactly one frame. The output
// encoder is chosen by ffmpeg from outputName's extension, so the format
// argument is already baked into the name the caller picked.
func (e *Engine) ExtractFrame(ctx context.Context, inputName string, timestamp float64, _ entity.ThumbnailFormat, outputName string) error {
	inputPath, err := e.resolve(inputName)
	if err != nil {
		return err
	}
	outputPath, err := e.resolve(outputName)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", inputPath,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(e.quality),
		"-y",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg error: %w, output: %s", err, string(output))
	}
	return nil
}

func (e *Engine) ReadOutput(name string) ([]byte, error) {
	path, err := e.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine output: %w", err)
	}
	return data, nil
}

func (e *Engine) Remove(name string) {
	path, err := e.resolve(name)
	if err != nil {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.logger.Debug("could not remove engine file", zap.String("name", name), zap.Error(err))
	}
}

func (e *Engine) ProbeDuration(ctx context.Context, inputName string) (float64, error) {
	if e.ffprobePath == "" {
		return 0, fmt.Errorf("ffprobe unavailable")
	}
	inputPath, err := e.resolve(inputName)
	if err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

// resolve confines name to the work directory.
func (e *Engine) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid engine file name %q", name)
	}
	return filepath.Join(e.workDir, name), nil
}
