// Package gerrit abstracts the gerrit servers that branch history is read
// from.
package gerrit

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jeffrom/custom-patches/model"
)

// Source reads the full history of one branch of a hosted project, newest
// commit first. Implementations: gitremote.Git, Mock.
type Source interface {
	ReadCommits(ctx context.Context, project, branch string) ([]*model.Commit, error)
}

// Directory answers questions about what a gerrit server hosts, for
// resolving which projects to compare: project enumeration for prefix
// discovery, and change lookup for mapping built commits back to their
// projects. Implementations: Client, Mock.
type Directory interface {
	ListProjects(ctx context.Context, prefix string, branches ...string) (map[string]ProjectInfo, error)
	Version(ctx context.Context) (string, error)
	QueryChanges(ctx context.Context, query string) ([]ChangeInfo, error)
	ListBranches(ctx context.Context, project string) ([]BranchInfo, error)
}

type NotFoundError struct {
	Ref string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("gerrit: %s not found", e.Ref)
}

type AuthError struct {
	URL string
}

func (e AuthError) Error() string {
	return fmt.Sprintf("gerrit: authentication failed for %s", e.URL)
}

// Remote names one gerrit server and the credentials to read from it.
type Remote struct {
	Location string
	Username string
	Password string
}

// RepoURL builds the git fetch url for a project, credentials included as
// userinfo. Log only the Redacted() form.
func (r Remote) RepoURL(project string) (*url.URL, error) {
	u, err := url.Parse(r.Location)
	if err != nil {
		return nil, fmt.Errorf("gerrit: invalid location %q: %w", r.Location, err)
	}
	p := project
	if !strings.HasSuffix(p, ".git") {
		p += ".git"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + p
	if r.Username != "" {
		u.User = url.UserPassword(r.Username, r.Password)
	}
	return u, nil
}
