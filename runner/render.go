package runner

import (
	"strings"
	"unicode/utf8"
)

// render writes the text report to stdout. Single-project runs list bare
// "<hash> <title>" lines; prefix and packages-file runs group them under one
// heading per project.
func (r *Runner) render(results []*projectResult) {
	showHeadings := r.cfg.ProjectPrefix != "" || r.cfg.PackagesFile != ""
	for _, pres := range results {
		if showHeadings {
			heading := "Project: " + pres.name
			r.cfg.Printf("")
			r.cfg.Printf("%s", heading)
			r.cfg.Printf("%s", strings.Repeat("=", utf8.RuneCountInString(heading)))
		}
		for _, c := range pres.commits {
			r.cfg.Printf("%s %s", c.ShortID(), c.Subject)
			if r.cfg.Long {
				for _, line := range c.BodyLines() {
					r.cfg.Printf("         %s", line)
				}
				r.cfg.Printf("")
			}
		}
	}
}
