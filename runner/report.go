package runner

import (
	"encoding/json"
	"os"
	"time"

	"github.com/jeffrom/custom-patches/patch"
)

// Record is one missing patch in the json report.
type Record struct {
	Project  string    `json:"project"`
	Commit   string    `json:"commit"`
	ChangeID string    `json:"change_id"`
	Title    string    `json:"title"`
	Message  []string  `json:"message"`
	Author   string    `json:"author"`
	Date     time.Time `json:"date"`
}

func buildRecords(results []*projectResult) []Record {
	var records []Record
	for _, pres := range results {
		for _, c := range pres.commits {
			id, _ := patch.ExtractChangeID(c.Message())
			records = append(records, Record{
				Project:  pres.name,
				Commit:   c.ID,
				ChangeID: id,
				Title:    c.Subject,
				Message:  c.BodyLines(),
				Author:   c.Author,
				Date:     c.CommitterDate,
			})
		}
	}
	return records
}

// writeJSON writes the report file, in the same order as the text report.
// Nothing is written when no patches are missing.
func (r *Runner) writeJSON(results []*projectResult) error {
	records := buildRecords(results)
	if len(records) == 0 {
		r.cfg.Debugf("No missing patches, skipping json output")
		return nil
	}
	b, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	r.cfg.Logf("Writing %d missing patches to %s", len(records), r.cfg.JSONPath)
	return os.WriteFile(r.cfg.JSONPath, b, 0644)
}
