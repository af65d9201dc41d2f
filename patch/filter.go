package patch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jeffrom/custom-patches/model"
)

// DefaultFilterRegex drops automated commits (requirement syncs, translation
// imports) that carry no custom work.
const DefaultFilterRegex = `^(?!(Updated from global requirements|Imported Translations from Zanata))`

// A TitleFilter decides which commit titles are worth reporting. The zero
// value matches everything.
type TitleFilter struct {
	re       *regexp.Regexp
	excludes []string
}

// NewTitleFilter compiles pattern. The empty pattern disables filtering.
// Patterns shaped like ^(?!(one|two)) are handled as literal title-prefix
// exclusions, since RE2 has no lookahead. Anything else must compile as RE2
// and matches like a search anchored at the start of the title.
func NewTitleFilter(pattern string) (*TitleFilter, error) {
	if pattern == "" {
		return &TitleFilter{}, nil
	}
	if excludes, ok := parseExcludePattern(pattern); ok {
		return &TitleFilter{excludes: excludes}, nil
	}
	re, err := regexp.Compile(`\A(?:` + pattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("patch: invalid title filter %q: %w", pattern, err)
	}
	return &TitleFilter{re: re}, nil
}

// parseExcludePattern recognizes the negative-lookahead shape ^(?!(one|two))
// and returns the alternatives as literal prefixes to reject. Alternatives
// containing their own groups are not supported and fall through to the
// regexp compile error.
func parseExcludePattern(pattern string) ([]string, bool) {
	const prefix, suffix = "^(?!(", "))"
	if !strings.HasPrefix(pattern, prefix) || !strings.HasSuffix(pattern, suffix) {
		return nil, false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(pattern, prefix), suffix)
	if inner == "" || strings.ContainsAny(inner, "()") {
		return nil, false
	}
	return strings.Split(inner, "|"), true
}

// Match reports whether a single title passes the filter.
func (f *TitleFilter) Match(title string) bool {
	if len(f.excludes) > 0 {
		for _, prefix := range f.excludes {
			if strings.HasPrefix(title, prefix) {
				return false
			}
		}
		return true
	}
	if f.re != nil {
		return f.re.MatchString(title)
	}
	return true
}

// Filter returns the commits whose subjects match, preserving order.
func (f *TitleFilter) Filter(commits []*model.Commit) []*model.Commit {
	var kept []*model.Commit
	for _, c := range commits {
		if f.Match(c.Subject) {
			kept = append(kept, c)
		}
	}
	return kept
}
