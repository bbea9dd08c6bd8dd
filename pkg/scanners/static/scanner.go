// Package static implements a pattern-based source scanner for the
// supported vulnerability categories. It needs no external binary: rules
// are regular expressions applied line by line to the artifact's files.
package static

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vulnflow/vulnflow/pkg/errors"
	"github.com/vulnflow/vulnflow/pkg/model"
	"github.com/vulnflow/vulnflow/pkg/signature"
)

// ScannerName is the registry name of the static scanner.
const ScannerName = "static"

// DefaultMaxFileSize is the largest file the scanner will read (5 MB).
const DefaultMaxFileSize = 5 * 1024 * 1024

// defaultExtensions are the file extensions scanned by default.
var defaultExtensions = []string{
	".go", ".py", ".js", ".ts", ".jsx", ".tsx",
	".java", ".rb", ".php", ".cs", ".sql",
	".yaml", ".yml", ".env",
}

// skippedDirs are directory names never descended into.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// Scanner is the static analysis scanner.
type Scanner struct {
	// Rules is the active rule set.
	Rules []Rule

	// Extensions limits which files are read.
	Extensions []string

	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64
}

// NewScanner creates a static scanner with the default rule set.
func NewScanner() *Scanner {
	return &Scanner{
		Rules:       DefaultRules(),
		Extensions:  defaultExtensions,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// Name returns the scanner name.
func (s *Scanner) Name() string {
	return ScannerName
}

// Scan walks the artifact path and returns one finding per rule match.
// A missing artifact path is a scan error; an artifact with no matches
// returns an empty slice.
func (s *Scanner) Scan(ctx context.Context, artifact model.Artifact) ([]model.Finding, error) {
	const op = "static.Scan"

	if artifact.Path == "" {
		return nil, errors.E(errors.KindScan, op, "artifact path is required")
	}
	info, err := os.Stat(artifact.Path)
	if err != nil {
		return nil, errors.E(errors.KindScan, op, "artifact path not accessible", err)
	}

	if !info.IsDir() {
		return s.scanFile(ctx, artifact.Path, artifact.Path)
	}

	findings := []model.Finding{}
	err = filepath.WalkDir(artifact.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.eligible(d) {
			return nil
		}

		fileFindings, err := s.scanFile(ctx, artifact.Path, path)
		if err != nil {
			return err
		}
		findings = append(findings, fileFindings...)
		return nil
	})
	if err != nil {
		return nil, errors.E(errors.KindScan, op, "walk artifact", err)
	}

	return findings, nil
}

// eligible reports whether a file should be read at all.
func (s *Scanner) eligible(d fs.DirEntry) bool {
	ext := strings.ToLower(filepath.Ext(d.Name()))
	matched := false
	for _, e := range s.Extensions {
		if ext == e {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	info, err := d.Info()
	if err != nil {
		return false
	}
	return info.Size() <= s.MaxFileSize
}

// scanFile applies every rule to every line of one file.
func (s *Scanner) scanFile(ctx context.Context, root, path string) ([]model.Finding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		rel = filepath.Base(path)
	}

	var findings []model.Finding
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), int(s.MaxFileSize))

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := scanner.Text()
		for _, rule := range s.Rules {
			if !rule.Pattern.MatchString(line) {
				continue
			}
			snippet := strings.TrimSpace(line)
			findings = append(findings, model.Finding{
				ID:       uuid.NewString(),
				Category: rule.Category,
				Severity: rule.Severity,
				Location: model.Location{
					FilePath:  rel,
					StartLine: lineNo,
					EndLine:   lineNo,
					Snippet:   snippet,
				},
				Description: rule.Description,
				RuleID:      rule.ID,
				PatternSignature: signature.GeneratePattern(
					rule.Category.String(), rule.ID, snippet,
				),
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return findings, nil
}
