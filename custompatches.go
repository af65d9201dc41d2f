// Package custompatches compares the history of two branches, on one or two
// Gerrit servers, and reports commits whose Gerrit Change-Id is present in the
// old branch but missing from the new one.
//
// Related packages: config, patch, gerrit, gerrit/gitremote, runner, model
package custompatches

import "github.com/jeffrom/custom-patches/config"

// Config holds most of the configuration variables for custom-patches. This
// struct is intended for command-line use, so not all of its attributes are
// applicable to every operation.
//
// See "go doc github.com/jeffrom/custom-patches/config Config" for more
// information.
type Config = config.Config
