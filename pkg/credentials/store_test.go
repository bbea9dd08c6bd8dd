package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvResolver(t *testing.T) {
	t.Setenv("VULNFLOW_GITHUB_TOKEN", "ghp_test")

	r := NewEnvResolver("VULNFLOW_")

	token, err := r.Token("github")
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "ghp_test" {
		t.Errorf("token = %q", token)
	}

	if _, err := r.Token("gitlab"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("unset variable should be ErrTokenNotFound, got %v", err)
	}
	if _, err := r.Token("bad/name"); !errors.Is(err, ErrInvalidProvider) {
		t.Errorf("slash in provider should be rejected, got %v", err)
	}
}

func TestFileResolver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := Save(path, map[string]string{"gitlab": "glpat-test"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	r := NewFileResolver(path)

	token, err := r.Token("gitlab")
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "glpat-test" {
		t.Errorf("token = %q", token)
	}

	if _, err := r.Token("github"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("missing entry should be ErrTokenNotFound, got %v", err)
	}
}

func TestFileResolver_RejectsLoosePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte(`{"github":"x"}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r := NewFileResolver(path)
	if _, err := r.Token("github"); !errors.Is(err, ErrInsecureFile) {
		t.Errorf("world-readable file should be rejected, got %v", err)
	}
}

func TestChain_FirstMatchWins(t *testing.T) {
	t.Setenv("VULNFLOW_GITHUB_TOKEN", "from-env")

	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := Save(path, map[string]string{"github": "from-file", "gitlab": "glpat"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	c := NewChain(NewEnvResolver("VULNFLOW_"), NewFileResolver(path))

	token, err := c.Token("github")
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "from-env" {
		t.Errorf("env should shadow file, got %q", token)
	}

	token, err = c.Token("gitlab")
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "glpat" {
		t.Errorf("fallback to file failed, got %q", token)
	}

	if _, err := c.Token("bitbucket"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("unknown provider should be ErrTokenNotFound, got %v", err)
	}
}
