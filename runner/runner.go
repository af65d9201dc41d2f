// Package runner manages command-line execution
package runner

import (
	"context"
	"fmt"
	"sort"

	"github.com/blang/semver/v4"

	"github.com/jeffrom/custom-patches/config"
	"github.com/jeffrom/custom-patches/gerrit"
	"github.com/jeffrom/custom-patches/model"
	"github.com/jeffrom/custom-patches/patch"
)

// Runner wires one comparison: resolve the projects to compare, read both
// branches of each, and report the patches whose Change-Id is missing from
// the new side.
type Runner struct {
	cfg    config.Config
	oldSrc gerrit.Source
	newSrc gerrit.Source
	dir    gerrit.Directory
}

// New builds a runner. dir is only used to resolve a project prefix or a
// packages file and may be nil otherwise.
func New(cfg config.Config, oldSrc, newSrc gerrit.Source, dir gerrit.Directory) *Runner {
	return &Runner{
		cfg:    cfg,
		oldSrc: oldSrc,
		newSrc: newSrc,
		dir:    dir,
	}
}

// Result summarizes a finished run.
type Result struct {
	Projects int
	Missing  int
}

// projectPair is one comparison to run. OldRef is the ref the old side of
// the pair is read at, usually the configured old branch; packages-file
// resolution pins it to the commit a package was built from instead.
type projectPair struct {
	Old    string
	New    string
	OldRef string
}

type projectResult struct {
	name    string
	commits []*model.Commit
}

func (r *Runner) Run(ctx context.Context) (*Result, error) {
	filter, err := patch.NewTitleFilter(r.cfg.FilterRegex)
	if err != nil {
		return nil, err
	}
	pairs, err := r.resolveProjects(ctx)
	if err != nil {
		return nil, err
	}
	if r.cfg.GerritPassword != "" || r.cfg.NewGerritPassword != "" {
		r.cfg.Logf("Passing credentials on the git command line; they may be visible to other local users while a fetch runs")
	}

	// read everything before rendering anything, so a failed fetch can't
	// leave half a report behind
	var results []*projectResult
	for _, pair := range pairs {
		oldCommits, err := r.oldSrc.ReadCommits(ctx, pair.Old, pair.OldRef)
		if err != nil {
			return nil, fmt.Errorf("read %s (%s): %w", pair.Old, pair.OldRef, err)
		}
		newCommits, err := r.newSrc.ReadCommits(ctx, pair.New, r.cfg.NewBranch)
		if err != nil {
			return nil, fmt.Errorf("read %s (%s): %w", pair.New, r.cfg.NewBranch, err)
		}
		r.cfg.Debugf("%s: %d commits on %q, %d commits on %q", pair.Old, len(oldCommits), pair.OldRef, len(newCommits), r.cfg.NewBranch)

		missing := filter.Filter(patch.Diff(oldCommits, newCommits))
		results = append(results, &projectResult{name: pair.New, commits: missing})
	}

	res := &Result{Projects: len(results)}
	for _, pres := range results {
		res.Missing += len(pres.commits)
	}

	r.render(results)
	if r.cfg.JSONPath != "" {
		if err := r.writeJSON(results); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// resolveProjects decides which project pairs to compare. A packages file
// takes precedence over any project selection; a project prefix either
// narrows a named project or, on its own, turns into a server-side search
// for every project carrying both branches. An explicitly set new-project
// name is always used as given; the fallback is the resolved old-side name,
// prefix included.
func (r *Runner) resolveProjects(ctx context.Context) ([]projectPair, error) {
	cfg := r.cfg
	switch {
	case cfg.PackagesFile != "":
		return r.resolvePackages(ctx)
	case cfg.ProjectPrefix != "" && cfg.Project == "":
		return r.discoverProjects(ctx)
	default:
		old := cfg.ProjectPrefix + cfg.Project
		return []projectPair{{Old: old, New: newSide(cfg, old), OldRef: cfg.OldBranch}}, nil
	}
}

// newSide resolves the project the new branch is read from: the configured
// new-project when set, the old side's name otherwise.
func newSide(cfg config.Config, old string) string {
	if cfg.NewProject != "" {
		return cfg.NewProject
	}
	return old
}

func (r *Runner) discoverProjects(ctx context.Context) ([]projectPair, error) {
	cfg := r.cfg
	if r.dir == nil {
		return nil, fmt.Errorf("runner: project discovery requires a gerrit REST client")
	}
	if err := r.checkDiscoverySupport(ctx); err != nil {
		return nil, err
	}

	infos, err := r.dir.ListProjects(ctx, cfg.ProjectPrefix, cfg.OldBranch, cfg.NewBranch)
	if err != nil {
		return nil, fmt.Errorf("list projects with prefix %q: %w", cfg.ProjectPrefix, err)
	}
	var names []string
	for name, info := range infos {
		if !info.HasBranches(cfg.OldBranch, cfg.NewBranch) {
			r.cfg.Debugf("Skipping %s: need branches %q and %q", name, cfg.OldBranch, cfg.NewBranch)
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, gerrit.NotFoundError{Ref: fmt.Sprintf("projects with prefix %q and branches %q, %q", cfg.ProjectPrefix, cfg.OldBranch, cfg.NewBranch)}
	}
	sort.Strings(names)

	pairs := make([]projectPair, len(names))
	for i, name := range names {
		pairs[i] = projectPair{Old: name, New: name, OldRef: cfg.OldBranch}
	}
	r.cfg.Logf("Comparing %d projects with prefix %q", len(pairs), cfg.ProjectPrefix)
	return pairs, nil
}

// projectQueryMinVersion is the oldest gerrit whose project listing supports
// branch filters.
var projectQueryMinVersion = semver.MustParse("2.9.0")

// checkDiscoverySupport fails fast on servers too old for branch-filtered
// project listing. A version that can't be read or parsed doesn't block the
// run; the listing itself will surface whatever is wrong.
func (r *Runner) checkDiscoverySupport(ctx context.Context) error {
	version, err := r.dir.Version(ctx)
	if err != nil {
		r.cfg.Debugf("Could not read server version: %v", err)
		return nil
	}
	v, err := semver.ParseTolerant(version)
	if err != nil {
		r.cfg.Debugf("Could not parse server version %q: %v", version, err)
		return nil
	}
	if v.LT(projectQueryMinVersion) {
		return fmt.Errorf("runner: gerrit %s does not support branch-filtered project listing (need %s or newer)", version, projectQueryMinVersion)
	}
	r.cfg.Debugf("Gerrit server version: %s", version)
	return nil
}
