package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/imdario/mergo"
)

// Config carries every setting of a comparison run. The "new" gerrit fields
// may be left empty to compare two branches on a single server; see
// ResolveFallbacks.
type Config struct {
	Gerrit            string `json:"gerrit,omitempty"`
	GerritUsername    string `json:"gerrit_username,omitempty"`
	GerritPassword    string `json:"-"`
	NewGerrit         string `json:"new_gerrit,omitempty"`
	NewGerritUsername string `json:"new_gerrit_username,omitempty"`
	NewGerritPassword string `json:"-"`

	Project       string `json:"project,omitempty"`
	NewProject    string `json:"new_project,omitempty"`
	ProjectPrefix string `json:"project_prefix,omitempty"`
	PackagesFile  string `json:"mcp_packages_file,omitempty"`
	OldBranch     string `json:"old_branch,omitempty"`
	NewBranch     string `json:"new_branch,omitempty"`

	FilterRegex string `json:"regex,omitempty"`
	Long        bool   `json:"long,omitempty"`
	JSONPath    string `json:"json_output,omitempty"`
	Workdir     string `json:"workdir,omitempty"`

	Verbose bool       `json:"verbose,omitempty"`
	Quiet   bool       `json:"quiet,omitempty"`
	Term    TerminalIO `json:"-"`
}

func New(overrides *Config) Config {
	return NewWithTerminalIO(overrides, nil)
}

func NewWithTerminalIO(overrides *Config, termio *TerminalIO) Config {
	cfg := GetDefault()
	if termio == nil {
		termio = &DefaultTermIO
	}
	cfg.Term = *termio

	if overrides != nil {
		if err := mergo.Merge(&cfg, overrides, mergo.WithOverride); err != nil {
			panic(err)
		}
	}
	return cfg
}

func GetDefault() Config {
	return Config{
		Workdir: filepath.Join(os.TempDir(), "custom-patches"),
	}
}

// ValidationError reports settings that can't describe a comparison run.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s", e.Reason)
}

// Validate checks the raw settings, before fallbacks are applied: credentials
// for a side must come in pairs even when the other side could fill the gap.
// A packages file stands in for both the project selection and the old
// branch, since it names the projects and old-side commits itself.
func (c Config) Validate() error {
	var missing []string
	if c.Gerrit == "" {
		missing = append(missing, "gerrit")
	}
	if c.PackagesFile == "" {
		if c.Project == "" && c.ProjectPrefix == "" {
			missing = append(missing, "project or project-prefix")
		}
		if c.OldBranch == "" {
			missing = append(missing, "old-branch")
		}
	}
	if c.NewBranch == "" {
		missing = append(missing, "new-branch")
	}
	if len(missing) > 0 {
		return ValidationError{Reason: "missing required settings: " + strings.Join(missing, ", ")}
	}
	if (c.GerritUsername == "") != (c.GerritPassword == "") {
		return ValidationError{Reason: "gerrit-username and gerrit-password must be set together"}
	}
	if (c.NewGerritUsername == "") != (c.NewGerritPassword == "") {
		return ValidationError{Reason: "new-gerrit-username and new-gerrit-password must be set together"}
	}
	return nil
}

// ResolveFallbacks fills each unset new-gerrit setting from its old-side
// counterpart, so comparing two branches on one server needs only one set of
// flags. Each of location, username, and password falls back independently.
// NewProject is left alone: its fallback is the fully resolved old-side
// project name (prefix included), so the runner applies it while pairing
// projects. Collapsing it here would make an explicitly set NewProject
// indistinguishable from the fallback.
func (c *Config) ResolveFallbacks() {
	if c.NewGerrit == "" {
		c.NewGerrit = c.Gerrit
	}
	if c.NewGerritUsername == "" {
		c.NewGerritUsername = c.GerritUsername
	}
	if c.NewGerritPassword == "" {
		c.NewGerritPassword = c.GerritPassword
	}
}

// Printf writes results to stdout. Progress and diagnostics belong on stderr
// via Logf, Debugf, and Errorf so that piped output stays clean.
func (c Config) Printf(msg string, args ...interface{}) {
	fmt.Fprintf(c.Term.Stdout, msg+"\n", args...)
}

// Logf writes progress information to stderr unless quiet mode is on.
func (c Config) Logf(msg string, args ...interface{}) {
	if c.Quiet {
		return
	}
	fmt.Fprintf(c.Term.Stderr, msg+"\n", args...)
}

func (c Config) Errorf(msg string, args ...interface{}) {
	fmt.Fprintf(c.Term.Stderr, msg+"\n", args...)
}

func (c Config) Debugf(msg string, args ...interface{}) {
	if !c.Verbose {
		return
	}
	c.Logf(msg, args...)
}
