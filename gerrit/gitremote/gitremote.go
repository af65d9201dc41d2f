// Package gitremote implements gerrit.Source using the git commandline tool.
package gitremote

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jeffrom/custom-patches/config"
	"github.com/jeffrom/custom-patches/gerrit"
	"github.com/jeffrom/custom-patches/model"
)

// Git reads branch history by fetching from a gerrit server's git endpoint
// into a local repo under workdir. Each instance owns the refs/remotes/<name>
// namespace there, so the two sides of a comparison can share the same repo
// without ever touching each other's refs. Credentials are passed per
// invocation and never written to git config.
type Git struct {
	cfg     config.Config
	name    string
	remote  gerrit.Remote
	workdir string
}

func New(cfg config.Config, name string, remote gerrit.Remote, workdir string) *Git {
	return &Git{
		cfg:     cfg,
		name:    name,
		remote:  remote,
		workdir: workdir,
	}
}

func (g *Git) ReadCommits(ctx context.Context, project, branch string) ([]*model.Commit, error) {
	dir, err := g.ensureRepo(ctx, project)
	if err != nil {
		return nil, err
	}
	u, err := g.remote.RepoURL(project)
	if err != nil {
		return nil, err
	}

	query := branchRef(g.name, branch)
	refspec := fmt.Sprintf("+refs/heads/%s:%s", branch, query)
	if isSHA(branch) {
		// a commit hash can't be fetched by name: take every head, then
		// check the commit came along.
		query = branch
		refspec = fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", g.name)
	}

	g.cfg.Logf("Fetching %s (%s) from %s", project, branch, u.Redacted())
	args := []string{"fetch", "--quiet", "--no-tags", "--force", u.String(), refspec}
	if _, err := g.call(ctx, dir, args); err != nil {
		return nil, g.classify(err, project, branch, u.Redacted())
	}

	if isSHA(branch) {
		if _, err := g.call(ctx, dir, []string{"rev-parse", "--verify", "--quiet", branch + "^{commit}"}); err != nil {
			return nil, gerrit.NotFoundError{Ref: fmt.Sprintf("%s commit %q", project, branch)}
		}
	}
	return g.readLog(ctx, dir, query)
}

// ensureRepo initializes (or reuses) the local repo a project is fetched
// into. Repos are keyed by the last path segment of the project name.
func (g *Git) ensureRepo(ctx context.Context, project string) (string, error) {
	dir := filepath.Join(g.workdir, path.Base(project))
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return dir, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if _, err := g.call(ctx, dir, []string{"init", "--quiet"}); err != nil {
		return "", err
	}
	return dir, nil
}

// classify maps git failures onto the error kinds callers tell apart. The
// wrapped error text keeps git's stderr, which call has already scrubbed of
// credentials.
func (g *Git) classify(err error, project, branch, redactedURL string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Authentication failed") ||
		strings.Contains(msg, "could not read Username") ||
		strings.Contains(msg, "could not read Password") ||
		strings.Contains(msg, "returned error: 401"):
		return gerrit.AuthError{URL: redactedURL}
	case strings.Contains(msg, "couldn't find remote ref"):
		return gerrit.NotFoundError{Ref: fmt.Sprintf("%s branch %q", project, branch)}
	case strings.Contains(msg, "not found") ||
		strings.Contains(msg, "returned error: 404") ||
		strings.Contains(msg, "does not appear to be a git repository"):
		return gerrit.NotFoundError{Ref: fmt.Sprintf("%s at %s", project, redactedURL)}
	}
	return err
}

const EXPECTED_LOG_PARTS = 9

func (g *Git) readLog(ctx context.Context, dir, query string) ([]*model.Commit, error) {
	args := []string{
		"log", "--no-merges", "--pretty=tformat:_START_%H_SEP_%aN_SEP_%ae_SEP_%ai_SEP_%cN_SEP_%ce_SEP_%ci_SEP_%s_SEP_%b_END_", query,
	}
	b, err := g.call(ctx, dir, args)
	if err != nil {
		return nil, err
	}

	var commits []*model.Commit
	scanner := bufio.NewScanner(bytes.NewBuffer(b))
	for scanner.Scan() {
		s := scanner.Text()
		parts := strings.Split(s, "_SEP_")
		if len(parts) != EXPECTED_LOG_PARTS {
			return nil, fmt.Errorf("gitremote: expected %d parts from git log, got %d", EXPECTED_LOG_PARTS, len(parts))
		}

		commitID := parts[0]
		if !strings.HasPrefix(commitID, "_START_") {
			return nil, fmt.Errorf("gitremote: unexpected git log line: %q", s)
		}
		commitID = strings.TrimPrefix(commitID, "_START_")

		// body can be multiple lines.
		var body string
		bodypart := parts[len(parts)-1]
		if strings.HasSuffix(bodypart, "_END_") {
			body = strings.TrimSuffix(bodypart, "_END_")
		} else {
			var bodyb strings.Builder
			bodyb.WriteString(bodypart)
			bodyb.WriteString("\n")
			for scanner.Scan() {
				bodyline := scanner.Text()
				if strings.HasSuffix(bodyline, "_END_") {
					if trimmed := strings.TrimSpace(strings.TrimSuffix(bodyline, "_END_")); trimmed != "" {
						bodyb.WriteString(trimmed)
					}
					break
				}
				bodyb.WriteString(bodyline)
				bodyb.WriteString("\n")
			}
			body = bodyb.String()
		}
		// git stores messages with a trailing newline; drop it so body text
		// is clean for trailer matching and rendering.
		body = strings.TrimRight(body, "\n")

		authorDate, err := ParseGitISO8601(parts[3])
		if err != nil {
			return nil, err
		}
		committerDate, err := ParseGitISO8601(parts[6])
		if err != nil {
			return nil, err
		}

		commits = append(commits, &model.Commit{
			ID:             commitID,
			Author:         parts[1],
			AuthorEmail:    parts[2],
			AuthorDate:     authorDate,
			Committer:      parts[4],
			CommitterEmail: parts[5],
			CommitterDate:  committerDate,
			Subject:        parts[7],
			Body:           body,
		})
	}
	return commits, nil
}

func branchRef(name, branch string) string {
	return "refs/remotes/" + name + "/" + branch
}

// isSHA reports whether ref names a commit by full hash instead of by
// branch.
func isSHA(ref string) bool {
	if len(ref) != 40 {
		return false
	}
	for _, c := range ref {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
