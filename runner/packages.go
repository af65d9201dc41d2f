package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeffrom/custom-patches/gerrit"
	"github.com/jeffrom/custom-patches/pkgfile"
)

// resolvePackages builds one comparison per built commit named in the
// packages file: the commit's project is looked up on gerrit, and the old
// side is read at that commit instead of a branch. Projects without the new
// branch are skipped with a warning; a commit with no change on gerrit is
// fatal, since the package can't be correlated at all.
func (r *Runner) resolvePackages(ctx context.Context) ([]projectPair, error) {
	cfg := r.cfg
	if r.dir == nil {
		return nil, fmt.Errorf("runner: packages-file resolution requires a gerrit REST client")
	}
	shas, err := pkgfile.CodeShas(cfg.PackagesFile)
	if err != nil {
		return nil, err
	}
	if len(shas) == 0 {
		return nil, fmt.Errorf("runner: no %s entries in %s", pkgfile.CodeShaField, cfg.PackagesFile)
	}

	var pairs []projectPair
	for _, sha := range shas {
		r.cfg.Debugf("Looking for commit %s", sha)
		project, err := r.projectForCommit(ctx, sha)
		if err != nil {
			return nil, err
		}
		if !r.hasNewBranch(ctx, project) {
			continue
		}
		pairs = append(pairs, projectPair{Old: project, New: newSide(cfg, project), OldRef: sha})
	}
	if len(pairs) == 0 {
		return nil, gerrit.NotFoundError{Ref: fmt.Sprintf("projects from %s with branch %q", cfg.PackagesFile, cfg.NewBranch)}
	}
	r.cfg.Logf("Comparing %d projects resolved from %s", len(pairs), cfg.PackagesFile)
	return pairs, nil
}

// projectForCommit resolves the project a commit was reviewed in. A commit
// mentioned by a manual-rebuild change shows up twice, once in the spec repo;
// the sources one wins. Spec repo names map onto their sources counterpart.
func (r *Runner) projectForCommit(ctx context.Context, sha string) (string, error) {
	changes, err := r.dir.QueryChanges(ctx, sha)
	if err != nil {
		return "", fmt.Errorf("find change for commit %s: %w", sha, err)
	}
	switch {
	case len(changes) == 0:
		return "", gerrit.NotFoundError{Ref: fmt.Sprintf("change for commit %s", sha)}
	case len(changes) > 2:
		return "", fmt.Errorf("runner: commit %s matches %d changes, can't pick a project", sha, len(changes))
	case len(changes) == 2:
		for _, ch := range changes {
			if strings.Contains(ch.Project, "/sources/") {
				return sourcesProject(ch.Project), nil
			}
		}
		return "", fmt.Errorf("runner: commit %s matches changes in %s and %s", sha, changes[0].Project, changes[1].Project)
	}
	return sourcesProject(changes[0].Project), nil
}

func sourcesProject(project string) string {
	return strings.Replace(project, "/specs/", "/sources/", 1)
}

// hasNewBranch reports whether the new branch exists on a project. Listing
// failures skip the project with a warning instead of aborting the run.
func (r *Runner) hasNewBranch(ctx context.Context, project string) bool {
	branches, err := r.dir.ListBranches(ctx, project)
	if err != nil {
		r.cfg.Logf("Skipping %s: could not list branches: %v", project, err)
		return false
	}
	ref := "refs/heads/" + r.cfg.NewBranch
	for _, b := range branches {
		if b.Ref == ref {
			return true
		}
	}
	r.cfg.Debugf("Skipping %s: no branch %q", project, r.cfg.NewBranch)
	return false
}
