package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeffrom/custom-patches/config"
	"github.com/jeffrom/custom-patches/gerrit"
	"github.com/jeffrom/custom-patches/model"
	"github.com/jeffrom/custom-patches/patch"
)

const (
	fixChangeID      = "Iaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	featureChangeID  = "Ibbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	upstreamChangeID = "Icccccccccccccccccccccccccccccccccccccccc"
	reqsChangeID     = "Idddddddddddddddddddddddddddddddddddddddd"
)

func newCommit(id, subject, changeID string) *model.Commit {
	return &model.Commit{
		ID:      id,
		Author:  "Cool Dev",
		Subject: subject,
		Body:    "Change-Id: " + changeID,
	}
}

var (
	fixCommit      = newCommit("aaaa1111aaaa1111aaaa1111aaaa1111aaaa1111", "fix the cool bug", fixChangeID)
	featureCommit  = newCommit("bbbb2222bbbb2222bbbb2222bbbb2222bbbb2222", "add cool feature", featureChangeID)
	upstreamCommit = newCommit("cccc3333cccc3333cccc3333cccc3333cccc3333", "upstream change", upstreamChangeID)
	// the same patch cherry-picked to the new branch under another hash
	upstreamPicked = newCommit("dddd4444dddd4444dddd4444dddd4444dddd4444", "upstream change", upstreamChangeID)
	reqsCommit     = newCommit("eeee5555eeee5555eeee5555eeee5555eeee5555", "Updated from global requirements", reqsChangeID)
)

func mockTermIO() (config.TerminalIO, *bytes.Buffer, *bytes.Buffer) {
	ob := &bytes.Buffer{}
	eb := &bytes.Buffer{}
	tio := config.TerminalIO{Stdout: ob, Stderr: eb}
	return tio, ob, eb
}

func newTestConfig(overrides *config.Config, tio *config.TerminalIO) config.Config {
	cfg := config.NewWithTerminalIO(overrides, tio)
	cfg.ResolveFallbacks()
	return cfg
}

func TestRunReportsMissing(t *testing.T) {
	tio, ob, _ := mockTermIO()
	jsonPath := filepath.Join(t.TempDir(), "missing.json")
	cfg := newTestConfig(&config.Config{
		Project:   "cool/project",
		OldBranch: "stable/newton",
		NewBranch: "master",
		JSONPath:  jsonPath,
	}, &tio)

	m := gerrit.NewMock().
		SetCommits("cool/project", "stable/newton", fixCommit, upstreamCommit).
		SetCommits("cool/project", "master", upstreamPicked)

	res, err := New(cfg, m, m, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Projects != 1 || res.Missing != 1 {
		t.Fatalf("expected 1 project with 1 missing patch, got %+v", res)
	}

	expect := "aaaa1111 fix the cool bug\n"
	if ob.String() != expect {
		t.Fatalf("expected output %q, got %q", expect, ob.String())
	}

	b, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var records []Record
	if err := json.Unmarshal(b, &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.ChangeID != fixChangeID || rec.Commit != fixCommit.ID || rec.Title != "fix the cool bug" || rec.Project != "cool/project" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Author != "Cool Dev" {
		t.Fatalf("unexpected author: %q", rec.Author)
	}
	if rec.Date.IsZero() {
		t.Fatal("expected a commit date")
	}
}

func TestRunEmptyResult(t *testing.T) {
	tio, ob, _ := mockTermIO()
	jsonPath := filepath.Join(t.TempDir(), "missing.json")
	cfg := newTestConfig(&config.Config{
		Project:   "cool/project",
		OldBranch: "stable/newton",
		NewBranch: "master",
		JSONPath:  jsonPath,
	}, &tio)

	m := gerrit.NewMock().
		SetCommits("cool/project", "stable/newton", upstreamCommit).
		SetCommits("cool/project", "master", upstreamPicked)

	res, err := New(cfg, m, m, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Missing != 0 {
		t.Fatalf("expected no missing patches, got %d", res.Missing)
	}
	if ob.String() != "" {
		t.Fatalf("expected no output, got %q", ob.String())
	}
	if _, err := os.Stat(jsonPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no json file, stat returned: %v", err)
	}
}

func TestRunPreservesOrder(t *testing.T) {
	tio, ob, _ := mockTermIO()
	cfg := newTestConfig(&config.Config{
		Project:   "cool/project",
		OldBranch: "stable/newton",
		NewBranch: "master",
	}, &tio)

	m := gerrit.NewMock().
		SetCommits("cool/project", "stable/newton", fixCommit, featureCommit, upstreamCommit).
		SetCommits("cool/project", "master", upstreamPicked)

	res, err := New(cfg, m, m, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Missing != 2 {
		t.Fatalf("expected 2 missing patches, got %d", res.Missing)
	}
	expect := "aaaa1111 fix the cool bug\nbbbb2222 add cool feature\n"
	if ob.String() != expect {
		t.Fatalf("expected output %q, got %q", expect, ob.String())
	}
}

func TestRunLongOutput(t *testing.T) {
	tio, ob, _ := mockTermIO()
	cfg := newTestConfig(&config.Config{
		Project:   "cool/project",
		OldBranch: "stable/newton",
		NewBranch: "master",
		Long:      true,
	}, &tio)

	longCommit := &model.Commit{
		ID:      "aaaa1111aaaa1111aaaa1111aaaa1111aaaa1111",
		Subject: "fix the cool bug",
		Body:    "This fixes the cool bug.\n\nChange-Id: " + fixChangeID,
	}
	m := gerrit.NewMock().
		SetCommits("cool/project", "stable/newton", longCommit).
		SetCommits("cool/project", "master")

	if _, err := New(cfg, m, m, nil).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	expect := "aaaa1111 fix the cool bug\n" +
		"         This fixes the cool bug.\n" +
		"         \n" +
		"         Change-Id: " + fixChangeID + "\n" +
		"\n"
	if ob.String() != expect {
		t.Fatalf("expected output %q, got %q", expect, ob.String())
	}
}

func TestRunDefaultFilter(t *testing.T) {
	tio, ob, _ := mockTermIO()
	cfg := newTestConfig(&config.Config{
		Project:     "cool/project",
		OldBranch:   "stable/newton",
		NewBranch:   "master",
		FilterRegex: patch.DefaultFilterRegex,
	}, &tio)

	m := gerrit.NewMock().
		SetCommits("cool/project", "stable/newton", fixCommit, reqsCommit).
		SetCommits("cool/project", "master")

	res, err := New(cfg, m, m, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Missing != 1 {
		t.Fatalf("expected 1 missing patch, got %d", res.Missing)
	}
	expect := "aaaa1111 fix the cool bug\n"
	if ob.String() != expect {
		t.Fatalf("expected output %q, got %q", expect, ob.String())
	}
}

func TestRunBadFilterRegex(t *testing.T) {
	tio, ob, _ := mockTermIO()
	cfg := newTestConfig(&config.Config{
		Project:     "cool/project",
		OldBranch:   "stable/newton",
		NewBranch:   "master",
		FilterRegex: "(",
	}, &tio)

	m := gerrit.NewMock()
	_, err := New(cfg, m, m, nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "invalid title filter") {
		t.Fatalf("unexpected error: %v", err)
	}
	if ob.String() != "" {
		t.Fatalf("expected no output, got %q", ob.String())
	}
}

func TestRunAuthErrorAborts(t *testing.T) {
	tio, ob, _ := mockTermIO()
	cfg := newTestConfig(&config.Config{
		Project:   "cool/project",
		OldBranch: "stable/newton",
		NewBranch: "master",
	}, &tio)

	m := gerrit.NewMock().SetError(gerrit.AuthError{URL: "https://review.example.com"})
	_, err := New(cfg, m, m, nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	authErr := gerrit.AuthError{}
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
	if ob.String() != "" {
		t.Fatalf("expected no output, got %q", ob.String())
	}
}

// A failed fetch on the new side aborts the run without rendering results
// collected so far.
func TestRunNewSideErrorNoPartialOutput(t *testing.T) {
	tio, ob, _ := mockTermIO()
	cfg := newTestConfig(&config.Config{
		Project:   "cool/project",
		OldBranch: "stable/newton",
		NewBranch: "master",
	}, &tio)

	m := gerrit.NewMock().
		SetCommits("cool/project", "stable/newton", fixCommit)
	// "master" is never registered, so the new-side read fails

	_, err := New(cfg, m, m, nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	nfErr := gerrit.NotFoundError{}
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %T: %v", err, err)
	}
	if ob.String() != "" {
		t.Fatalf("expected no output, got %q", ob.String())
	}
}

func discoveryProjects() map[string]gerrit.ProjectInfo {
	return map[string]gerrit.ProjectInfo{
		"cool/one":   {Branches: map[string]string{"stable/newton": "aaaa", "master": "bbbb"}},
		"cool/two":   {Branches: map[string]string{"stable/newton": "aaaa"}},
		"cool/three": {Branches: map[string]string{"stable/newton": "aaaa", "master": "bbbb"}},
		"other/misc": {Branches: map[string]string{"stable/newton": "aaaa", "master": "bbbb"}},
	}
}

func TestRunPrefixDiscovery(t *testing.T) {
	tio, ob, _ := mockTermIO()
	jsonPath := filepath.Join(t.TempDir(), "missing.json")
	cfg := newTestConfig(&config.Config{
		ProjectPrefix: "cool/",
		OldBranch:     "stable/newton",
		NewBranch:     "master",
		JSONPath:      jsonPath,
	}, &tio)

	m := gerrit.NewMock().
		SetProjects(discoveryProjects()).
		SetCommits("cool/one", "stable/newton", fixCommit).
		SetCommits("cool/one", "master").
		SetCommits("cool/three", "stable/newton", featureCommit).
		SetCommits("cool/three", "master")

	res, err := New(cfg, m, m, m).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Projects != 2 || res.Missing != 2 {
		t.Fatalf("expected 2 projects with 2 missing patches, got %+v", res)
	}

	expect := "\nProject: cool/one\n" +
		"=================\n" +
		"aaaa1111 fix the cool bug\n" +
		"\nProject: cool/three\n" +
		"===================\n" +
		"bbbb2222 add cool feature\n"
	if ob.String() != expect {
		t.Fatalf("expected output %q, got %q", expect, ob.String())
	}

	b, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var records []Record
	if err := json.Unmarshal(b, &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Project != "cool/one" || records[1].Project != "cool/three" {
		t.Fatalf("unexpected record projects: %q, %q", records[0].Project, records[1].Project)
	}
}

func TestRunPrefixWithProject(t *testing.T) {
	tio, ob, _ := mockTermIO()
	cfg := newTestConfig(&config.Config{
		ProjectPrefix: "cool/",
		Project:       "one",
		OldBranch:     "stable/newton",
		NewBranch:     "master",
	}, &tio)

	m := gerrit.NewMock().
		SetCommits("cool/one", "stable/newton", fixCommit).
		SetCommits("cool/one", "master")

	res, err := New(cfg, m, m, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Projects != 1 || res.Missing != 1 {
		t.Fatalf("expected 1 project with 1 missing patch, got %+v", res)
	}
	if !strings.Contains(ob.String(), "Project: cool/one") {
		t.Fatalf("expected a project heading, got %q", ob.String())
	}
}

// An explicitly set new-project is always used as given; the fallback is the
// resolved old-side name, prefix included.
func TestResolveProjectPairs(t *testing.T) {
	tcs := []struct {
		name   string
		cfg    config.Config
		expect projectPair
	}{
		{
			name:   "project-only",
			cfg:    config.Config{Project: "cool/one"},
			expect: projectPair{Old: "cool/one", New: "cool/one", OldRef: "stable/newton"},
		},
		{
			name:   "new-project",
			cfg:    config.Config{Project: "cool/one", NewProject: "other/one"},
			expect: projectPair{Old: "cool/one", New: "other/one", OldRef: "stable/newton"},
		},
		{
			name:   "prefix-and-project",
			cfg:    config.Config{ProjectPrefix: "cool/", Project: "one"},
			expect: projectPair{Old: "cool/one", New: "cool/one", OldRef: "stable/newton"},
		},
		{
			name:   "prefix-keeps-explicit-new-project",
			cfg:    config.Config{ProjectPrefix: "cool/", Project: "one", NewProject: "other/one"},
			expect: projectPair{Old: "cool/one", New: "other/one", OldRef: "stable/newton"},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			tio, _, _ := mockTermIO()
			cfg := tc.cfg
			cfg.OldBranch = "stable/newton"
			cfg.NewBranch = "master"
			r := New(newTestConfig(&cfg, &tio), nil, nil, nil)
			pairs, err := r.resolveProjects(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if len(pairs) != 1 {
				t.Fatalf("expected 1 pair, got %d", len(pairs))
			}
			if pairs[0] != tc.expect {
				t.Fatalf("expected pair %+v, got %+v", tc.expect, pairs[0])
			}
		})
	}
}

func TestRunPrefixExplicitNewProject(t *testing.T) {
	tio, ob, _ := mockTermIO()
	cfg := newTestConfig(&config.Config{
		ProjectPrefix: "cool/",
		Project:       "one",
		NewProject:    "other/one",
		OldBranch:     "stable/newton",
		NewBranch:     "master",
	}, &tio)

	m := gerrit.NewMock().
		SetCommits("cool/one", "stable/newton", upstreamCommit).
		SetCommits("other/one", "master", upstreamPicked)

	res, err := New(cfg, m, m, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Missing != 0 {
		t.Fatalf("expected no missing patches, got %d: %q", res.Missing, ob.String())
	}
}

func TestRunPrefixNoMatches(t *testing.T) {
	tio, _, _ := mockTermIO()
	cfg := newTestConfig(&config.Config{
		ProjectPrefix: "nomatch/",
		OldBranch:     "stable/newton",
		NewBranch:     "master",
	}, &tio)

	m := gerrit.NewMock().SetProjects(discoveryProjects())
	_, err := New(cfg, m, m, m).Run(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	nfErr := gerrit.NotFoundError{}
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %T: %v", err, err)
	}
}

func TestRunPrefixRequiresClient(t *testing.T) {
	tio, _, _ := mockTermIO()
	cfg := newTestConfig(&config.Config{
		ProjectPrefix: "cool/",
		OldBranch:     "stable/newton",
		NewBranch:     "master",
	}, &tio)

	m := gerrit.NewMock()
	if _, err := New(cfg, m, m, nil).Run(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRunDiscoveryVersionGate(t *testing.T) {
	tcs := []struct {
		name      string
		version   string
		expectErr string
	}{
		{
			name:    "new-enough",
			version: "3.4.1",
		},
		{
			name:      "too-old",
			version:   "2.8.1",
			expectErr: "2.9",
		},
		{
			name:    "unparseable-proceeds",
			version: "trunk-build",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			tio, _, _ := mockTermIO()
			cfg := newTestConfig(&config.Config{
				ProjectPrefix: "cool/",
				OldBranch:     "stable/newton",
				NewBranch:     "master",
			}, &tio)

			m := gerrit.NewMock().
				SetVersion(tc.version).
				SetProjects(discoveryProjects()).
				SetCommits("cool/one", "stable/newton", fixCommit).
				SetCommits("cool/one", "master").
				SetCommits("cool/three", "stable/newton").
				SetCommits("cool/three", "master")

			_, err := New(cfg, m, m, m).Run(context.Background())
			if tc.expectErr == "" {
				if err != nil {
					t.Fatal(err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.expectErr) {
				t.Fatalf("expected error to mention %q, got: %v", tc.expectErr, err)
			}
		})
	}
}

func TestRunDiscoveryError(t *testing.T) {
	tio, _, _ := mockTermIO()
	cfg := newTestConfig(&config.Config{
		ProjectPrefix: "cool/",
		OldBranch:     "stable/newton",
		NewBranch:     "master",
	}, &tio)

	m := gerrit.NewMock().SetError(gerrit.AuthError{URL: "https://review.example.com"})
	_, err := New(cfg, m, m, m).Run(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	authErr := gerrit.AuthError{}
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
}
