package patch

import "github.com/jeffrom/custom-patches/model"

// Diff returns the commits from old whose Change-Id does not appear anywhere
// in new, preserving old's order. Commits without a Change-Id are skipped on
// both sides. The commit hashes themselves never matter: a patch that was
// cherry-picked with a different hash but the same Change-Id is not missing.
func Diff(old, new []*model.Commit) []*model.Commit {
	ids := make(map[string]struct{}, len(new))
	for _, c := range new {
		if id, ok := ExtractChangeID(c.Message()); ok {
			ids[id] = struct{}{}
		}
	}

	var missing []*model.Commit
	for _, c := range old {
		id, ok := ExtractChangeID(c.Message())
		if !ok {
			continue
		}
		if _, ok := ids[id]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
