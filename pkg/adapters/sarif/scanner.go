package sarif

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vulnflow/vulnflow/pkg/errors"
	"github.com/vulnflow/vulnflow/pkg/model"
)

// Scanner implements the pipeline scanner interface over SARIF files,
// letting runs start from results an external tool already produced.
// The artifact path may point at a single .sarif file or a directory
// containing them.
type Scanner struct {
	adapter Adapter
}

// NewScanner creates a SARIF import scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

func (s *Scanner) Name() string {
	return "sarif-import"
}

func (s *Scanner) Scan(ctx context.Context, artifact model.Artifact) ([]model.Finding, error) {
	const op = "adapters.sarif.Scan"

	info, err := os.Stat(artifact.Path)
	if err != nil {
		return nil, errors.E(errors.KindInvalidInput, op, "stat artifact", err)
	}

	var paths []string
	if info.IsDir() {
		err := filepath.WalkDir(artifact.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".sarif") {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.E(errors.KindInternal, op, "walk artifact", err)
		}
	} else {
		paths = []string{artifact.Path}
	}

	var findings []model.Finding
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.E(errors.KindInternal, op, "read "+path, err)
		}
		converted, err := s.adapter.Convert(data)
		if err != nil {
			return nil, err
		}
		findings = append(findings, converted...)
	}
	return findings, nil
}
