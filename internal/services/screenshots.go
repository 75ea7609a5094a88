package services

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

type screenshotTaker interface {
	Screenshot(path string) error
}

// Screenshotter writes best-effort screenshots. A zero dir disables it.
type Screenshotter struct {
	dir    string
	prefix string
	logger *zap.Logger
}

// NewScreenshotter returns a Screenshotter writing <dir>/<prefix>-<name>.png.
func NewScreenshotter(dir, prefix string, logger *zap.Logger) *Screenshotter {
	return &Screenshotter{dir: dir, prefix: prefix, logger: logger}
}

// Capture takes a screenshot; failures are logged and ignored.
func (s *Screenshotter) Capture(target screenshotTaker, name string) {
	if s == nil || s.dir == "" || target == nil {
		return
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Debug("failed to create screenshot dir", zap.String("dir", s.dir), zap.Error(err))
		return
	}
	file := name + ".png"
	if s.prefix != "" {
		file = s.prefix + "-" + file
	}
	path := filepath.Join(s.dir, file)
	if err := target.Screenshot(path); err != nil {
		s.logger.Debug("screenshot failed", zap.String("path", path), zap.Error(err))
	}
}
