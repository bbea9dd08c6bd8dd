package connectors

import (
	"context"

	"github.com/google/uuid"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/vulnflow/vulnflow/pkg/errors"
	"github.com/vulnflow/vulnflow/pkg/model"
)

// GitLabSource resolves artifact metadata from a GitLab project.
type GitLabSource struct {
	*BaseConnector

	// ProjectID is the numeric ID or "group/project" path.
	ProjectID string

	// Branch to resolve; empty means the project default branch.
	Branch string

	// CheckoutPath is the local tree the pipeline will scan.
	CheckoutPath string

	client *gitlab.Client
}

// GitLabConfig configures a GitLab artifact source.
type GitLabConfig struct {
	// BaseURL of the GitLab instance; empty means gitlab.com.
	BaseURL      string
	ProjectID    string
	Branch       string
	CheckoutPath string
	Connector    *ConnectorConfig
}

// NewGitLabSource creates a GitLab artifact source.
func NewGitLabSource(cfg GitLabConfig) (*GitLabSource, error) {
	const op = "connectors.gitlab.New"

	if cfg.ProjectID == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "project ID is required")
	}
	if cfg.CheckoutPath == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "checkout path is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://gitlab.com"
	}
	base := NewBaseConnector("gitlab", baseURL, cfg.Connector)

	client, err := gitlab.NewClient(base.Config().Token, gitlab.WithBaseURL(baseURL))
	if err != nil {
		return nil, errors.E(errors.KindInvalidInput, op, "create client", err)
	}

	return &GitLabSource{
		BaseConnector: base,
		ProjectID:     cfg.ProjectID,
		Branch:        cfg.Branch,
		CheckoutPath:  cfg.CheckoutPath,
		client:        client,
	}, nil
}

// Resolve pins the branch head and returns the artifact.
func (s *GitLabSource) Resolve(ctx context.Context) (model.Artifact, error) {
	const op = "connectors.gitlab.Resolve"

	if err := s.WaitForRateLimit(ctx); err != nil {
		return model.Artifact{}, err
	}

	project, _, err := s.client.Projects.GetProject(s.ProjectID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return model.Artifact{}, errors.E(errors.KindNetwork, op, "get project", err)
	}

	branch := s.Branch
	if branch == "" {
		branch = project.DefaultBranch
	}

	if err := s.WaitForRateLimit(ctx); err != nil {
		return model.Artifact{}, err
	}
	b, _, err := s.client.Branches.GetBranch(s.ProjectID, branch, gitlab.WithContext(ctx))
	if err != nil {
		return model.Artifact{}, errors.E(errors.KindNetwork, op, "resolve branch head", err)
	}

	sha := ""
	if b.Commit != nil {
		sha = b.Commit.ID
	}

	return model.Artifact{
		ID:         uuid.NewString(),
		Path:       s.CheckoutPath,
		Repository: project.PathWithNamespace,
		Branch:     branch,
		CommitSHA:  sha,
		Source:     s.Name(),
	}, nil
}

var _ ArtifactSource = (*GitLabSource)(nil)
