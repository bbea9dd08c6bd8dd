// Package scanners provides vulnerability scanner implementations and a
// registry for plugging in additional ones.
package scanners

import (
	"context"
	"sync"

	sarifadapter "github.com/vulnflow/vulnflow/pkg/adapters/sarif"
	"github.com/vulnflow/vulnflow/pkg/model"
	"github.com/vulnflow/vulnflow/pkg/scanners/static"
)

// =============================================================================
// Scanner Interface
// =============================================================================

// Scanner discovers vulnerability findings in an artifact.
type Scanner interface {
	// Name returns the unique scanner name.
	Name() string

	// Scan inspects the artifact and returns all findings.
	Scan(ctx context.Context, artifact model.Artifact) ([]model.Finding, error)
}

// =============================================================================
// Scanner Registry - Plugin system for scanners
// =============================================================================

// Registry manages registered scanners.
type Registry struct {
	scanners map[string]Scanner
	mu       sync.RWMutex
}

// NewRegistry creates a new scanner registry with built-in scanners.
func NewRegistry() *Registry {
	registry := &Registry{
		scanners: make(map[string]Scanner),
	}

	// Register built-in scanners
	registry.Register(static.NewScanner())
	registry.Register(sarifadapter.NewScanner())

	return registry
}

// Register adds a scanner to the registry, replacing any scanner with
// the same name.
func (r *Registry) Register(scanner Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanners[scanner.Name()] = scanner
}

// Get returns a scanner by name, or nil if not registered.
func (r *Registry) Get(name string) Scanner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scanners[name]
}

// List returns all registered scanner names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	return names
}

// =============================================================================
// Preset Scanners - Ready-to-use scanner instances
// =============================================================================

// StaticScanner is a type alias for external package access.
type StaticScanner = static.Scanner

// Static returns a new static analysis scanner with the built-in rule set.
func Static() *static.Scanner {
	return static.NewScanner()
}

// StaticWithConfig returns a static scanner with custom configuration.
func StaticWithConfig(opts StaticOptions) *static.Scanner {
	scanner := static.NewScanner()
	if len(opts.Rules) > 0 {
		scanner.Rules = opts.Rules
	}
	if len(opts.Extensions) > 0 {
		scanner.Extensions = opts.Extensions
	}
	if opts.MaxFileSize > 0 {
		scanner.MaxFileSize = opts.MaxFileSize
	}
	return scanner
}

// SARIFImport returns a scanner that ingests SARIF documents produced
// by external tools instead of scanning source directly.
func SARIFImport() *sarifadapter.Scanner {
	return sarifadapter.NewScanner()
}

// StaticOptions configures the static scanner.
type StaticOptions struct {
	Rules       []static.Rule // Custom rule set (replaces the default)
	Extensions  []string      // File extensions to scan
	MaxFileSize int64         // Skip files larger than this (bytes)
}
