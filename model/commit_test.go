package model

import "testing"

func TestCommit(t *testing.T) {
	cmt := &Commit{ID: "deadbeefdeadbeef"}
	short := cmt.ShortID()
	expect := "deadbeef"
	if short != expect {
		t.Fatal("expected", expect, "got", short)
	}
}

func TestCommitShortIDShort(t *testing.T) {
	cmt := &Commit{ID: "ab12"}
	if short := cmt.ShortID(); short != "ab12" {
		t.Fatal("expected", "ab12", "got", short)
	}
}

func TestCommitMessage(t *testing.T) {
	tcs := []struct {
		name   string
		commit *Commit
		expect string
	}{
		{
			name:   "subject-only",
			commit: &Commit{Subject: "cool subject"},
			expect: "cool subject",
		},
		{
			name:   "with-body",
			commit: &Commit{Subject: "cool subject", Body: "a body\n\nChange-Id: Ideadbeef"},
			expect: "cool subject\n\na body\n\nChange-Id: Ideadbeef",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if msg := tc.commit.Message(); msg != tc.expect {
				t.Fatalf("expected %q, got %q", tc.expect, msg)
			}
		})
	}
}

func TestCommitBodyLines(t *testing.T) {
	cmt := &Commit{Subject: "cool subject", Body: "one\ntwo"}
	lines := cmt.BodyLines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "one" || lines[1] != "two" {
		t.Fatalf("unexpected lines: %q", lines)
	}

	empty := &Commit{Subject: "cool subject"}
	if lines := empty.BodyLines(); lines != nil {
		t.Fatalf("expected no lines, got %q", lines)
	}
}
