// Package credentials resolves provider API tokens for the artifact
// source connectors. Tokens come from the environment, from a
// permission-checked token file, or from a fallback chain of both.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// Resolver looks up the API token for a provider ("github", "gitlab").
type Resolver interface {
	// Token returns the token for the provider. A missing token is
	// ErrTokenNotFound, not an empty string.
	Token(provider string) (string, error)
}

// Common errors for token resolution.
var (
	ErrTokenNotFound   = fmt.Errorf("token not found")
	ErrInsecureFile    = fmt.Errorf("token file is group or world readable")
	ErrInvalidProvider = fmt.Errorf("invalid provider name")
)

// validProvider rejects names that could smuggle path or env
// separators into lookups.
func validProvider(provider string) error {
	if provider == "" {
		return ErrInvalidProvider
	}
	for _, r := range provider {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
		}
	}
	return nil
}

// =============================================================================
// Environment Resolver
// =============================================================================

// EnvResolver reads tokens from environment variables. Provider
// "github" with prefix "VULNFLOW_" maps to VULNFLOW_GITHUB_TOKEN.
// Suitable for CI environments.
type EnvResolver struct {
	// Prefix is prepended to the generated variable name.
	Prefix string
}

// NewEnvResolver creates an environment token resolver.
func NewEnvResolver(prefix string) *EnvResolver {
	return &EnvResolver{Prefix: prefix}
}

func (r *EnvResolver) Token(provider string) (string, error) {
	if err := validProvider(provider); err != nil {
		return "", err
	}

	name := r.Prefix + strings.ToUpper(strings.ReplaceAll(provider, "-", "_")) + "_TOKEN"
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: $%s unset", ErrTokenNotFound, name)
}

// =============================================================================
// File Resolver
// =============================================================================

// FileResolver reads tokens from a JSON file mapping provider names to
// tokens. The file must not be group or world readable.
type FileResolver struct {
	mu     sync.Mutex
	path   string
	tokens map[string]string
	loaded bool
}

// NewFileResolver creates a file token resolver. The file is read
// lazily on first lookup.
func NewFileResolver(path string) *FileResolver {
	return &FileResolver{path: path}
}

func (r *FileResolver) Token(provider string) (string, error) {
	if err := validProvider(provider); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		if err := r.load(); err != nil {
			return "", err
		}
		r.loaded = true
	}

	if v := r.tokens[provider]; v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: no %q entry in %s", ErrTokenNotFound, provider, r.path)
}

func (r *FileResolver) load() error {
	info, err := os.Stat(r.path)
	if err != nil {
		return fmt.Errorf("token file: %w", err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return fmt.Errorf("%w: %s has mode %04o", ErrInsecureFile, r.path, info.Mode().Perm())
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("token file: %w", err)
	}
	if err := json.Unmarshal(data, &r.tokens); err != nil {
		return fmt.Errorf("token file %s: %w", r.path, err)
	}
	return nil
}

// Save writes a provider-token map to path with owner-only
// permissions. Used by setup tooling, not by the agent run path.
func Save(path string, tokens map[string]string) error {
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, fs.FileMode(0o600))
}

// =============================================================================
// Chain Resolver
// =============================================================================

// Chain checks resolvers in order; the first token found wins.
// Typically the environment layered over a token file.
type Chain struct {
	resolvers []Resolver
}

// NewChain creates a fallback chain of resolvers.
func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

func (c *Chain) Token(provider string) (string, error) {
	for _, r := range c.resolvers {
		token, err := r.Token(provider)
		if err == nil {
			return token, nil
		}
		if errors.Is(err, ErrInvalidProvider) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: provider %q", ErrTokenNotFound, provider)
}

var (
	_ Resolver = (*EnvResolver)(nil)
	_ Resolver = (*FileResolver)(nil)
	_ Resolver = (*Chain)(nil)
)
