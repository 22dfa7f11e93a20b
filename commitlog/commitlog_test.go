package commitlog_test

import (
	"testing"

	"github.com/go-test/deep"

	"github.com/guyincognito/gitbot/commitlog"
)

func TestParseSingleCommitNoBody(t *testing.T) {
	raw := `commit abc123
Author: Jane Doe <jane@example.com>
Commit: Jane Doe <jane@example.com>

    Add user table
`
	commits, err := commitlog.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(commits))
	}
	c := commits[0]
	if c.SHA != "abc123" || c.Title != "Add user table" || c.IsMerge {
		t.Errorf("unexpected commit: %+v", c)
	}
	if c.SeparatorLine != nil || len(c.BodyLines) != 0 {
		t.Errorf("expected no separator/body, got sep=%v body=%v", c.SeparatorLine, c.BodyLines)
	}
}

func TestParseCommitWithBody(t *testing.T) {
	// git log indents every message line with four spaces, including the
	// blank separator and paragraph breaks; only the line between two
	// records is truly empty.
	raw := "commit abc123\n" +
		"Author: Jane Doe <jane@example.com>\n" +
		"Commit: Jane Doe <jane@example.com>\n" +
		"\n" +
		"    Add user table\n" +
		"    \n" +
		"    Adds a users table with id, name, email.\n" +
		"    \n" +
		"    Second paragraph.\n"
	commits, err := commitlog.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(commits))
	}
	c := commits[0]
	if c.SeparatorLine == nil || *c.SeparatorLine != "" {
		t.Errorf("expected empty separator line, got %v", c.SeparatorLine)
	}
	want := []string{"Adds a users table with id, name, email.", "", "Second paragraph."}
	if len(c.BodyLines) != len(want) {
		t.Fatalf("got body lines %v, want %v", c.BodyLines, want)
	}
	for i := range want {
		if c.BodyLines[i] != want[i] {
			t.Errorf("body line %d = %q, want %q", i, c.BodyLines[i], want[i])
		}
	}
}

func TestParseMergeCommit(t *testing.T) {
	raw := `commit abc123
Merge: 111111 222222
Author: Jane Doe <jane@example.com>
Commit: Jane Doe <jane@example.com>

    Merge branch 'release'
`
	commits, err := commitlog.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(commits) != 1 || !commits[0].IsMerge {
		t.Fatalf("expected one merge commit, got %+v", commits)
	}
}

func TestParseMultipleCommits(t *testing.T) {
	raw := `commit aaa
Author: A <a@example.com>
Commit: A <a@example.com>

    First

commit bbb
Author: B <b@example.com>
Commit: B <b@example.com>

    Second
`
	commits, err := commitlog.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}
	if commits[0].SHA != "aaa" || commits[1].SHA != "bbb" {
		t.Errorf("unexpected shas: %q, %q", commits[0].SHA, commits[1].SHA)
	}
}

func TestParseBodyThenNextCommit(t *testing.T) {
	// The truly-empty line after "Body of first." ends the record; the
	// indented blank inside the message does not.
	raw := "commit aaa\n" +
		"Author: A <a@example.com>\n" +
		"Commit: A <a@example.com>\n" +
		"\n" +
		"    First\n" +
		"    \n" +
		"    Body of first.\n" +
		"\n" +
		"commit bbb\n" +
		"Author: B <b@example.com>\n" +
		"Commit: B <b@example.com>\n" +
		"\n" +
		"    Second\n"
	commits, err := commitlog.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}
	if len(commits[0].BodyLines) != 1 || commits[0].BodyLines[0] != "Body of first." {
		t.Errorf("first body = %v, want [Body of first.]", commits[0].BodyLines)
	}
	if commits[1].SeparatorLine != nil || len(commits[1].BodyLines) != 0 {
		t.Errorf("second commit should have no separator or body, got %+v", commits[1])
	}
}

func TestParseEmptyLog(t *testing.T) {
	commits, err := commitlog.Parse("")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(commits) != 0 {
		t.Errorf("expected no commits, got %d", len(commits))
	}
}

func TestParseFullRecordMatchesExpected(t *testing.T) {
	raw := "commit abc123\n" +
		"Author: Jane Doe <jane@example.com>\n" +
		"Commit: John Roe <john@example.com>\n" +
		"\n" +
		"    Add user table\n" +
		"    \n" +
		"    Adds a users table with id, name, email.\n"
	commits, err := commitlog.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	sep := ""
	want := commitlog.Commit{
		SHA:              "abc123",
		IsMerge:          false,
		AuthorDisplay:    "Jane Doe",
		AuthorEmail:      "jane@example.com",
		CommitterDisplay: "John Roe",
		CommitterEmail:   "john@example.com",
		Title:            "Add user table",
		SeparatorLine:    &sep,
		BodyLines:        []string{"Adds a users table with id, name, email."},
	}
	if len(commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(commits))
	}
	if diff := deep.Equal(commits[0], want); diff != nil {
		t.Errorf("parsed commit differs from expected: %v", diff)
	}
}

func TestParseMalformedLog(t *testing.T) {
	raw := `commit abc123
this is not an author line
`
	if _, err := commitlog.Parse(raw); err == nil {
		t.Error("expected MalformedLog error, got nil")
	}
}
