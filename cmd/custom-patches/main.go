package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"
	"github.com/imdario/mergo"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/jeffrom/custom-patches/config"
	"github.com/jeffrom/custom-patches/gerrit"
	"github.com/jeffrom/custom-patches/gerrit/gitremote"
	"github.com/jeffrom/custom-patches/patch"
	"github.com/jeffrom/custom-patches/runner"
)

var (
	// overridden by go build -X
	Version string
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(rawArgs []string) error {
	// credentials are commonly kept in a .env file next to the checkout
	_ = godotenv.Load()
	cfg := config.New(nil)

	var help bool
	var version bool
	var cfgFile string
	var printConfig bool
	flags := pflag.NewFlagSet("custom-patches", pflag.ExitOnError)
	flags.BoolVarP(&help, "help", "h", false, "show help")
	flags.BoolVarP(&version, "version", "V", false, "print version and exit")
	flags.StringVar(&cfg.Gerrit, "gerrit", os.Getenv("CUSTOM_PATCHES_GERRIT_LOC"), "gerrit server `location`, like https://review.example.org/")
	flags.StringVar(&cfg.GerritUsername, "gerrit-username", os.Getenv("CUSTOM_PATCHES_GERRIT_USERNAME"), "gerrit http `username`")
	flags.StringVar(&cfg.GerritPassword, "gerrit-password", os.Getenv("CUSTOM_PATCHES_GERRIT_HTTP_PASSWORD"), "gerrit http `password` (not the account password)")
	flags.StringVar(&cfg.Project, "project", os.Getenv("CUSTOM_PATCHES_GERRIT_PROJECT"), "compare `project`'s branches")
	flags.StringVar(&cfg.NewGerrit, "new-gerrit", os.Getenv("CUSTOM_PATCHES_NEW_GERRIT_LOC"), "gerrit server `location` for the new branch, if different")
	flags.StringVar(&cfg.NewGerritUsername, "new-gerrit-username", os.Getenv("CUSTOM_PATCHES_NEW_GERRIT_USERNAME"), "gerrit http `username` for the new branch's server")
	flags.StringVar(&cfg.NewGerritPassword, "new-gerrit-password", os.Getenv("CUSTOM_PATCHES_NEW_GERRIT_HTTP_PASSWORD"), "gerrit http `password` for the new branch's server")
	flags.StringVar(&cfg.NewProject, "new-project", os.Getenv("CUSTOM_PATCHES_NEW_GERRIT_PROJECT"), "compare against `project` on the new branch's server, if different")
	flags.StringVar(&cfg.ProjectPrefix, "project-prefix", os.Getenv("CUSTOM_PATCHES_GERRIT_PROJECT_PREFIX"), "compare every project whose name starts with `prefix`")
	flags.StringVar(&cfg.PackagesFile, "mcp-packages-file", "", "resolve projects and old-side commits from the code-sha metadata in a debian Packages `file`; overrides project selection and old-branch")
	flags.StringVar(&cfg.OldBranch, "old-branch", os.Getenv("CUSTOM_PATCHES_OLD_BRANCH"), "`branch` to look for missing patches on")
	flags.StringVar(&cfg.NewBranch, "new-branch", os.Getenv("CUSTOM_PATCHES_NEW_BRANCH"), "`branch` the patches should have landed on")
	flags.StringVar(&cfg.FilterRegex, "regex", patch.DefaultFilterRegex, "skip old-branch commits whose title matches `regex`")
	flags.BoolVar(&cfg.Long, "long", false, "print full commit messages, not just titles")
	flags.StringVar(&cfg.JSONPath, "json", "", "also write missing patches to `file` as json")
	flags.StringVar(&cfg.Workdir, "workdir", cfg.Workdir, "fetch repositories into `dir`")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "print additional debugging info")
	flags.BoolVarP(&cfg.Quiet, "quiet", "q", false, "print as little as necessary")
	flags.StringVarP(&cfgFile, "config", "c", "", "specify config `file`")
	flags.BoolVar(&printConfig, "print-config", false, "print effective configuration and exit")

	if err := flags.Parse(rawArgs); err != nil {
		return err
	}
	args := flags.Args()[1:]
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}

	if help {
		usage(cfg, flags)
		return nil
	}
	if version {
		cfg.Printf("%s", Version)
		return nil
	}

	fileCfg, err := readConfigYAML(cfgFile)
	if err != nil {
		return err
	}
	if fileCfg != nil {
		// the file fills in whatever flags and envvars left unset
		if err := mergo.Merge(&cfg, fileCfg); err != nil {
			return err
		}
		// mergo can't tell a flag default from an unset field for the two
		// flags whose defaults aren't empty
		if fileCfg.FilterRegex != "" && !flags.Lookup("regex").Changed {
			cfg.FilterRegex = fileCfg.FilterRegex
		}
		if fileCfg.Workdir != "" && !flags.Lookup("workdir").Changed {
			cfg.Workdir = fileCfg.Workdir
		}
	}
	if printConfig {
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		cfg.Printf("%s", string(b))
		return nil
	}
	if cfg.Verbose {
		b, err := json.MarshalIndent(cfg, "", "  ")
		die(err)
		cfg.Debugf("config: %s", string(b))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.ResolveFallbacks()
	// done setting up config

	oldRemote := gerrit.Remote{Location: cfg.Gerrit, Username: cfg.GerritUsername, Password: cfg.GerritPassword}
	newRemote := gerrit.Remote{Location: cfg.NewGerrit, Username: cfg.NewGerritUsername, Password: cfg.NewGerritPassword}

	var dir gerrit.Directory
	if cfg.PackagesFile != "" || (cfg.ProjectPrefix != "" && cfg.Project == "") {
		client, err := gerrit.NewClient(cfg, oldRemote)
		if err != nil {
			return err
		}
		dir = client
	}

	oldSrc := gitremote.New(cfg, "source", oldRemote, cfg.Workdir)
	newSrc := gitremote.New(cfg, "target", newRemote, cfg.Workdir)
	rnr := runner.New(cfg, oldSrc, newSrc, dir)

	res, err := rnr.Run(context.Background())
	if err != nil {
		return err
	}
	if istty := isatty.IsTerminal(os.Stdout.Fd()); istty && res.Missing == 0 {
		cfg.Logf("No missing patches found")
	}
	return nil
}

func die(err error) {
	if err != nil {
		panic(err)
	}
}

func usage(cfg config.Config, flags *pflag.FlagSet) {
	cfg.Printf(`%s

Report patches present on one gerrit branch but missing from another,
matched by Change-Id, across one or two gerrit servers.

FLAGS
%s
EXAMPLES

# patches on stable/newton that never landed on master
$ custom-patches --gerrit https://review.example.org/ --project cool/widgets \
    --old-branch stable/newton --new-branch master

# the same comparison for every project under cool/
$ custom-patches --gerrit https://review.example.org/ --project-prefix cool/ \
    --old-branch stable/newton --new-branch master

# compare across two servers and keep a json report
$ custom-patches --gerrit https://old-review.example.org/ \
    --new-gerrit https://review.example.org/ --project cool/widgets \
    --old-branch stable/newton --new-branch master --json missing.json

# patches shipped in a package repo but absent from master
$ custom-patches --gerrit https://review.example.org/ \
    --mcp-packages-file dists/stable/main/binary-amd64/Packages \
    --new-branch master
`, os.Args[0], flags.FlagUsages())
}

func readConfigYAML(p string) (*config.Config, error) {
	if p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		cfg := &config.Config{}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	for {
		candPath := filepath.Join(wd, "custom-patches.yaml")
		b, err := os.ReadFile(candPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				wd, _ = filepath.Split(filepath.Clean(wd))
				if wd == "/" {
					break
				}
				continue
			}
			return nil, err
		}

		cfg := &config.Config{}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return nil, nil
}
