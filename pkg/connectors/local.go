package connectors

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/vulnflow/vulnflow/pkg/errors"
	"github.com/vulnflow/vulnflow/pkg/model"
)

// LocalSource serves an artifact straight from the filesystem. It is the
// source used for one-shot runs against an already checked-out tree.
type LocalSource struct {
	// Path to the directory or file to scan
	Path string

	// Repository is an optional display name; defaults to the base name
	Repository string
}

// NewLocalSource creates a local artifact source for the given path.
func NewLocalSource(path string) *LocalSource {
	return &LocalSource{Path: path}
}

// Name returns "local".
func (s *LocalSource) Name() string {
	return "local"
}

// Resolve validates the path and returns the artifact.
func (s *LocalSource) Resolve(ctx context.Context) (model.Artifact, error) {
	const op = "connectors.local.Resolve"

	if err := ctx.Err(); err != nil {
		return model.Artifact{}, err
	}
	if s.Path == "" {
		return model.Artifact{}, errors.E(errors.KindInvalidInput, op, "path is required")
	}

	abs, err := filepath.Abs(s.Path)
	if err != nil {
		return model.Artifact{}, errors.E(errors.KindInvalidInput, op, "resolve path", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return model.Artifact{}, errors.E(errors.KindNotFound, op, "path not accessible", err)
	}

	repo := s.Repository
	if repo == "" {
		repo = filepath.Base(abs)
	}

	return model.Artifact{
		ID:         uuid.NewString(),
		Path:       abs,
		Repository: repo,
		Source:     s.Name(),
	}, nil
}

var _ ArtifactSource = (*LocalSource)(nil)
