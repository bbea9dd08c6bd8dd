package connectors

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/vulnflow/vulnflow/pkg/errors"
)

func TestBaseConnector_Defaults(t *testing.T) {
	c := NewBaseConnector("test", "https://example.com", nil)

	if c.Name() != "test" || c.BaseURL() != "https://example.com" {
		t.Errorf("identity = %s %s", c.Name(), c.BaseURL())
	}
	if c.RateLimited() {
		t.Error("no rate limit configured, RateLimited should be false")
	}
	if c.HTTPClient().Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s default", c.HTTPClient().Timeout)
	}
}

func TestBaseConnector_ConnectionState(t *testing.T) {
	c := NewBaseConnector("test", "", nil)

	if c.IsConnected() {
		t.Error("new connector should not be connected")
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.IsConnected() {
		t.Error("connector should be connected after Connect")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.IsConnected() {
		t.Error("connector should be disconnected after Close")
	}
}

func TestBaseConnector_RateLimiter(t *testing.T) {
	c := NewBaseConnector("test", "", &ConnectorConfig{
		RateLimit:  3600, // one per second
		BurstLimit: 2,
	})
	if !c.RateLimited() {
		t.Fatal("rate limiting should be enabled")
	}

	ctx := context.Background()
	// Burst allows the first two waits to return immediately.
	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := c.WaitForRateLimit(ctx); err != nil {
			t.Fatalf("WaitForRateLimit: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("burst waits took %v, expected immediate", elapsed)
	}
}

func TestBaseConnector_RateLimitCancelled(t *testing.T) {
	c := NewBaseConnector("test", "", &ConnectorConfig{
		RateLimit:  1, // one per hour: the next wait would block for ages
		BurstLimit: 1,
	})
	ctx := context.Background()
	if err := c.WaitForRateLimit(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := c.WaitForRateLimit(cancelled); err == nil {
		t.Error("cancelled wait should fail")
	}
}

func TestLocalSource_Resolve(t *testing.T) {
	dir := t.TempDir()

	src := NewLocalSource(dir)
	artifact, err := src.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if artifact.ID == "" {
		t.Error("artifact ID not assigned")
	}
	if artifact.Path != dir {
		t.Errorf("path = %q, want %q", artifact.Path, dir)
	}
	if artifact.Repository != filepath.Base(dir) {
		t.Errorf("repository = %q, want base name", artifact.Repository)
	}
	if artifact.Source != "local" {
		t.Errorf("source = %q, want local", artifact.Source)
	}
}

func TestLocalSource_MissingPath(t *testing.T) {
	_, err := NewLocalSource("/does/not/exist").Resolve(context.Background())
	if !errors.IsNotFoundError(err) {
		t.Errorf("err = %v, want not-found", err)
	}

	if _, err := NewLocalSource("").Resolve(context.Background()); err == nil {
		t.Error("empty path should fail")
	}
}

func TestNewGitHubSource_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  GitHubConfig
		ok   bool
	}{
		{"complete", GitHubConfig{Owner: "acme", Repo: "shop", CheckoutPath: "/tmp/shop"}, true},
		{"missing owner", GitHubConfig{Repo: "shop", CheckoutPath: "/tmp/shop"}, false},
		{"missing repo", GitHubConfig{Owner: "acme", CheckoutPath: "/tmp/shop"}, false},
		{"missing checkout", GitHubConfig{Owner: "acme", Repo: "shop"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewGitHubSource(tt.cfg)
			if tt.ok && err != nil {
				t.Fatalf("NewGitHubSource: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected validation error")
			}
			if tt.ok && src.Name() != "github" {
				t.Errorf("name = %q", src.Name())
			}
		})
	}
}

func TestNewGitLabSource_Validation(t *testing.T) {
	src, err := NewGitLabSource(GitLabConfig{ProjectID: "acme/shop", CheckoutPath: "/tmp/shop"})
	if err != nil {
		t.Fatalf("NewGitLabSource: %v", err)
	}
	if src.Name() != "gitlab" || src.BaseURL() != "https://gitlab.com" {
		t.Errorf("identity = %s %s", src.Name(), src.BaseURL())
	}

	if _, err := NewGitLabSource(GitLabConfig{CheckoutPath: "/tmp/shop"}); err == nil {
		t.Error("missing project ID should fail")
	}
	if _, err := NewGitLabSource(GitLabConfig{ProjectID: "acme/shop"}); err == nil {
		t.Error("missing checkout path should fail")
	}
}
