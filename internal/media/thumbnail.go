package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"media-vfs/internal/filesystem"
	"media-vfs/internal/logging"
	"media-vfs/internal/metrics"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// ThumbnailSize is the bounding box of generated thumbnails.
	ThumbnailSize = 200

	// ThumbnailQuality is the JPEG quality of generated thumbnails.
	ThumbnailQuality = 80

	// MaxImageDimension is the maximum width or height decoded at full size.
	MaxImageDimension = 4096

	// MaxImagePixels is the maximum pixel count decoded at full size.
	MaxImagePixels = 20_000_000
)

var (
	// ErrDisabled is returned when thumbnails are turned off.
	ErrDisabled = errors.New("thumbnails disabled")

	// ErrInvalidKey is returned for keys that cannot name a cache file.
	ErrInvalidKey = errors.New("invalid thumbnail key")

	validKey = regexp.MustCompile(`^[0-9a-f]{32}$`)
)

// ThumbnailGenerator renders JPEG thumbnails into a cache directory. It
// implements vfs.ThumbnailBuilder.
type ThumbnailGenerator struct {
	cacheDir string
	enabled  bool
	mu       sync.Mutex
}

// NewThumbnailGenerator creates a generator writing into cacheDir.
func NewThumbnailGenerator(cacheDir string, enabled bool) *ThumbnailGenerator {
	if enabled {
		logging.Debug("ThumbnailGenerator: enabled, cache dir: %s", cacheDir)
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			logging.Warn("ThumbnailGenerator: failed to create cache dir: %v", err)
		}
	} else {
		logging.Debug("ThumbnailGenerator: disabled")
	}
	return &ThumbnailGenerator{
		cacheDir: cacheDir,
		enabled:  enabled,
	}
}

// IsEnabled reports whether thumbnails are generated.
func (t *ThumbnailGenerator) IsEnabled() bool {
	return t.enabled
}

// NewKey returns a fresh thumbnail key.
func NewKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ThumbnailPath returns the cache file for key.
func (t *ThumbnailGenerator) ThumbnailPath(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(t.cacheDir, key[:2], key+".jpg"), nil
}

// BuildThumbnail renders the image at absPath. An empty key allocates a new
// one; otherwise the thumbnail stored under key is replaced. The key of the
// written thumbnail is returned.
func (t *ThumbnailGenerator) BuildThumbnail(key, absPath string) (string, error) {
	if !t.enabled {
		return key, ErrDisabled
	}
	if key == "" {
		key = NewKey()
	}
	cachePath, err := t.ThumbnailPath(key)
	if err != nil {
		return "", err
	}

	if _, err := filesystem.StatWithRetry(absPath, filesystem.DefaultRetryConfig()); err != nil {
		return "", fmt.Errorf("file not accessible: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	img, decoder, err := loadSource(absPath)
	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues(decoder, "error").Inc()
		return "", fmt.Errorf("thumbnail generation failed for %s: %w", absPath, err)
	}

	thumb := imaging.Fit(img, ThumbnailSize, ThumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(ThumbnailQuality)); err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues(decoder, "error").Inc()
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	if err := writeAtomic(cachePath, buf.Bytes()); err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues(decoder, "error").Inc()
		return "", fmt.Errorf("failed to store thumbnail: %w", err)
	}

	metrics.ThumbnailGenerationsTotal.WithLabelValues(decoder, "success").Inc()
	metrics.ThumbnailGenerationDuration.WithLabelValues(decoder).Observe(time.Since(start).Seconds())
	logging.Debug("Thumbnail %s written for %s", key, absPath)
	return key, nil
}

// loadSource decodes the image, through libvips when available. The second
// return names the decoder used.
func loadSource(path string) (image.Image, string, error) {
	if IsVipsAvailable() {
		img, err := LoadImageWithVips(path, ThumbnailSize, ThumbnailSize)
		if err == nil {
			return img, "vips", nil
		}
		logging.Debug("vips failed for %s: %v, falling back to imaging", path, err)
	}

	img, err := loadImageConstrained(path)
	if err != nil {
		format, _ := detectFileType(path)
		return nil, "imaging", fmt.Errorf("decoding %s image: %w", format, err)
	}
	return img, "imaging", nil
}

// loadImageConstrained decodes the image and shrinks it first when it
// exceeds MaxImageDimension or MaxImagePixels.
func loadImageConstrained(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width <= MaxImageDimension && height <= MaxImageDimension && width*height <= MaxImagePixels {
		return img, nil
	}

	logging.Info("Constraining large image %s (%dx%d)", path, width, height)
	return imaging.Fit(img, MaxImageDimension, MaxImageDimension, imaging.Box), nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".thumb-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// detectFileType sniffs the image format from magic bytes.
func detectFileType(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	header := make([]byte, 12)
	n, err := file.Read(header)
	if err != nil {
		return "", err
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg", nil
	case bytes.HasPrefix(header, []byte{0x89, 'P', 'N', 'G'}):
		return "png", nil
	case bytes.HasPrefix(header, []byte("GIF8")):
		return "gif", nil
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")):
		return "webp", nil
	case bytes.HasPrefix(header, []byte("BM")):
		return "bmp", nil
	case bytes.HasPrefix(header, []byte{'I', 'I', 0x2A, 0x00}), bytes.HasPrefix(header, []byte{'M', 'M', 0x00, 0x2A}):
		return "tiff", nil
	case len(header) >= 12 && bytes.Equal(header[4:8], []byte("ftyp")):
		return "heif", nil
	}
	return "unknown", nil
}
