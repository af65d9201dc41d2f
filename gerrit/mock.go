package gerrit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeffrom/custom-patches/model"
)

// Mock serves canned commits and project listings. Branches are registered
// with SetCommits; reading an unregistered branch fails with NotFoundError,
// like the real thing.
type Mock struct {
	t        time.Time
	commits  map[string][]*model.Commit
	projects map[string]ProjectInfo
	changes  map[string][]ChangeInfo
	branches map[string][]BranchInfo
	version  string
	err      error
}

func NewMock() *Mock {
	return &Mock{
		t:        time.Now(),
		commits:  make(map[string][]*model.Commit),
		changes:  make(map[string][]ChangeInfo),
		branches: make(map[string][]BranchInfo),
		version:  "3.4.1",
	}
}

func (m *Mock) SetCommits(project, branch string, commits ...*model.Commit) *Mock {
	finalCommits := make([]*model.Commit, len(commits))
	for i, commit := range commits {
		c := *commit
		if c.CommitterDate.IsZero() {
			c.CommitterDate = m.t
			m.t = m.t.Add(-time.Minute)
		}
		finalCommits[i] = &c
	}
	m.commits[mockKey(project, branch)] = finalCommits
	return m
}

func (m *Mock) SetProjects(projects map[string]ProjectInfo) *Mock {
	m.projects = projects
	return m
}

// SetChanges registers the changes a query returns. Queries with nothing
// registered return an empty result, like the real thing.
func (m *Mock) SetChanges(query string, changes ...ChangeInfo) *Mock {
	m.changes[query] = changes
	return m
}

// SetBranches registers a project's branches by short name; ListBranches
// serves them under refs/heads/.
func (m *Mock) SetBranches(project string, branches ...string) *Mock {
	infos := make([]BranchInfo, len(branches))
	for i, b := range branches {
		infos[i] = BranchInfo{Ref: "refs/heads/" + b}
	}
	m.branches[project] = infos
	return m
}

func (m *Mock) SetVersion(version string) *Mock {
	m.version = version
	return m
}

// SetError makes every read fail with err.
func (m *Mock) SetError(err error) *Mock {
	m.err = err
	return m
}

func (m *Mock) ReadCommits(ctx context.Context, project, branch string) ([]*model.Commit, error) {
	if m.err != nil {
		return nil, m.err
	}
	commits, ok := m.commits[mockKey(project, branch)]
	if !ok {
		return nil, NotFoundError{Ref: fmt.Sprintf("%s branch %q", project, branch)}
	}
	return commits, nil
}

func (m *Mock) ListProjects(ctx context.Context, prefix string, branches ...string) (map[string]ProjectInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	infos := make(map[string]ProjectInfo)
	for name, info := range m.projects {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if len(branches) > 0 && !hasAnyBranch(info, branches) {
			continue
		}
		infos[name] = info
	}
	return infos, nil
}

func (m *Mock) QueryChanges(ctx context.Context, query string) ([]ChangeInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.changes[query], nil
}

func (m *Mock) ListBranches(ctx context.Context, project string) ([]BranchInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	branches, ok := m.branches[project]
	if !ok {
		return nil, NotFoundError{Ref: project}
	}
	return branches, nil
}

func (m *Mock) Version(ctx context.Context) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.version, nil
}

func mockKey(project, branch string) string {
	return project + "\x00" + branch
}

func hasAnyBranch(info ProjectInfo, branches []string) bool {
	for _, b := range branches {
		if _, ok := info.Branches[b]; ok {
			return true
		}
	}
	return false
}
