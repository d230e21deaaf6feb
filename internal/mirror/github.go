package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
	"go.uber.org/zap"
)

// GitHub mirrors artifacts as files committed to a repository branch.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	branch string
	dir    string
	logger *zap.Logger
}

// Option configures a GitHub mirror.
type Option func(*GitHub)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *GitHub) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithBaseURL points the client at a different API root (GitHub Enterprise, tests).
func WithBaseURL(u string) Option {
	return func(g *GitHub) {
		if u == "" {
			return
		}
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		if parsed, err := url.Parse(u); err == nil {
			g.client.BaseURL = parsed
		}
	}
}

// NewGitHub creates a mirror for owner/repo. Files go under dir on branch; an empty
// branch means the repository default branch.
func NewGitHub(token, owner, repo, branch, dir string, opts ...Option) (*GitHub, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("github mirror: owner and repo are required")
	}
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, fmt.Errorf("github mirror: %w", err)
	}
	client := github.NewClient(rateLimiter)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	g := &GitHub{
		client: client,
		owner:  owner,
		repo:   repo,
		branch: branch,
		dir:    strings.Trim(dir, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GitHub) filePath(name string) string {
	if g.dir == "" {
		return name
	}
	return path.Join(g.dir, name)
}

func (g *GitHub) getOptions() *github.RepositoryContentGetOptions {
	if g.branch == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: g.branch}
}

// Pull downloads the named artifact. It returns ErrNotFound when the file does not exist.
func (g *GitHub) Pull(ctx context.Context, name string) ([]byte, error) {
	p := g.filePath(name)
	fileContent, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, p, g.getOptions())
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get content of %s: %w", p, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("%s is not a file", p)
	}

	// The contents API omits bodies larger than 1 MB; index blobs usually are.
	if fileContent.GetEncoding() == "none" || (fileContent.Content == nil && fileContent.GetSize() > 0) {
		rc, _, err := g.client.Repositories.DownloadContents(ctx, g.owner, g.repo, p, g.getOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", p, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", p, err)
	}
	g.logger.Debug("Pulled artifact from mirror", zap.String("path", p), zap.Int("bytes", len(content)))
	return []byte(content), nil
}

// Push creates or updates the named artifact with a single commit.
func (g *GitHub) Push(ctx context.Context, name string, data []byte, message string) error {
	p := g.filePath(name)
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: data,
	}
	if g.branch != "" {
		opts.Branch = github.Ptr(g.branch)
	}

	existing, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, p, g.getOptions())
	switch {
	case err == nil && existing != nil:
		opts.SHA = existing.SHA
		if _, _, err := g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, p, opts); err != nil {
			return fmt.Errorf("failed to update %s: %w", p, err)
		}
	case err == nil || (resp != nil && resp.StatusCode == http.StatusNotFound):
		if _, _, err := g.client.Repositories.CreateFile(ctx, g.owner, g.repo, p, opts); err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
	default:
		return fmt.Errorf("failed to get content of %s: %w", p, err)
	}
	g.logger.Debug("Pushed artifact to mirror", zap.String("path", p), zap.Int("bytes", len(data)))
	return nil
}
