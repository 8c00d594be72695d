package dashboard

import (
	"context"
	"os"
	"path/filepath"

	"github.com/apiobserve/collector/pkg/errors"
)

// FilePublisher writes the page to a local path, creating parent
// directories as needed.
type FilePublisher struct {
	path string
}

// NewFilePublisher publishes to the given file path.
func NewFilePublisher(path string) *FilePublisher {
	return &FilePublisher{path: path}
}

func (p *FilePublisher) Publish(ctx context.Context, content []byte, contentType string) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create dashboard directory")
	}
	if err := os.WriteFile(p.path, content, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write dashboard file")
	}
	return nil
}
