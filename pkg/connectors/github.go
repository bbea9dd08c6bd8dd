package connectors

import (
	"context"

	"github.com/google/go-github/v74/github"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/vulnflow/vulnflow/pkg/errors"
	"github.com/vulnflow/vulnflow/pkg/model"
)

// GitHubSource resolves artifact metadata from a GitHub repository.
// Scanning itself runs against CheckoutPath; the API is used to pin the
// branch and commit the checkout corresponds to.
type GitHubSource struct {
	*BaseConnector

	// Owner and Repo identify the repository.
	Owner string
	Repo  string

	// Branch to resolve; empty means the repository default branch.
	Branch string

	// CheckoutPath is the local tree the pipeline will scan.
	CheckoutPath string

	client *github.Client
}

// GitHubConfig configures a GitHub artifact source.
type GitHubConfig struct {
	Owner        string
	Repo         string
	Branch       string
	CheckoutPath string
	Connector    *ConnectorConfig
}

// NewGitHubSource creates a GitHub artifact source.
func NewGitHubSource(cfg GitHubConfig) (*GitHubSource, error) {
	const op = "connectors.github.New"

	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "owner and repo are required")
	}
	if cfg.CheckoutPath == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "checkout path is required")
	}

	base := NewBaseConnector("github", "https://api.github.com", cfg.Connector)

	var client *github.Client
	if token := base.Config().Token; token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		client = github.NewClient(nil)
	}

	return &GitHubSource{
		BaseConnector: base,
		Owner:         cfg.Owner,
		Repo:          cfg.Repo,
		Branch:        cfg.Branch,
		CheckoutPath:  cfg.CheckoutPath,
		client:        client,
	}, nil
}

// Resolve pins the branch head and returns the artifact.
func (s *GitHubSource) Resolve(ctx context.Context) (model.Artifact, error) {
	const op = "connectors.github.Resolve"

	if err := s.WaitForRateLimit(ctx); err != nil {
		return model.Artifact{}, err
	}

	repo, _, err := s.client.Repositories.Get(ctx, s.Owner, s.Repo)
	if err != nil {
		return model.Artifact{}, errors.E(errors.KindNetwork, op, "get repository", err)
	}

	branch := s.Branch
	if branch == "" {
		branch = repo.GetDefaultBranch()
	}

	if err := s.WaitForRateLimit(ctx); err != nil {
		return model.Artifact{}, err
	}
	ref, _, err := s.client.Git.GetRef(ctx, s.Owner, s.Repo, "refs/heads/"+branch)
	if err != nil {
		return model.Artifact{}, errors.E(errors.KindNetwork, op, "resolve branch head", err)
	}

	return model.Artifact{
		ID:         uuid.NewString(),
		Path:       s.CheckoutPath,
		Repository: s.Owner + "/" + s.Repo,
		Branch:     branch,
		CommitSHA:  ref.GetObject().GetSHA(),
		Source:     s.Name(),
	}, nil
}

var _ ArtifactSource = (*GitHubSource)(nil)
