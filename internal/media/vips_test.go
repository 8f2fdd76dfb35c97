package media

import (
	"testing"

	"github.com/davidbyttow/govips/v2/vips"

	"media-vfs/internal/logging"
)

func TestVipsLogLevel(t *testing.T) {
	tests := []struct {
		level logging.LogLevel
		want  vips.LogLevel
	}{
		{logging.LevelDebug, vips.LogLevelInfo},
		{logging.LevelInfo, vips.LogLevelWarning},
		{logging.LevelWarn, vips.LogLevelError},
		{logging.LevelError, vips.LogLevelCritical},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := vipsLogLevel(tt.level); got != tt.want {
				t.Errorf("vipsLogLevel(%v) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

// libvips cannot be restarted once shut down, so these tests never call
// InitVips and only cover the fallback path.
func TestLoadImageWithVipsUnavailable(t *testing.T) {
	if IsVipsAvailable() {
		t.Skip("libvips already initialized")
	}
	if _, err := LoadImageWithVips("/nonexistent.jpg", 10, 10); err == nil {
		t.Error("expected error when libvips is not initialized")
	}
}
