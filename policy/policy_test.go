package policy_test

import (
	"context"
	"testing"

	"github.com/guyincognito/gitbot/commitlog"
	"github.com/guyincognito/gitbot/policy"
)

func ruleIDs(vs []policy.Violation) []string {
	var ids []string
	for _, v := range vs {
		ids = append(ids, v.RuleID)
	}
	return ids
}

func contains(ids []string, id string) bool {
	for _, got := range ids {
		if got == id {
			return true
		}
	}
	return false
}

func TestCheckCleanCommitHasNoViolations(t *testing.T) {
	sep := ""
	c := commitlog.Commit{
		SHA:              "abc",
		AuthorDisplay:    "Jane Doe",
		AuthorEmail:      "jane@example.com",
		CommitterDisplay: "Jane Doe",
		CommitterEmail:   "jane@example.com",
		Title:            "Add user table",
		SeparatorLine:    &sep,
		BodyLines:        []string{"Adds a users table with id, name, email."},
	}
	cfg := policy.Config{Domains: []string{"example.com"}}
	vs := policy.Check(context.Background(), c, cfg, nil)
	if len(vs) != 0 {
		t.Errorf("expected no violations, got %v", ruleIDs(vs))
	}
}

func TestCheckMultipleViolations(t *testing.T) {
	// "updated stuff." -- past tense, lower-case, ends with punctuation,
	// not in the verb allow-list.
	c := commitlog.Commit{
		SHA:              "abc",
		AuthorDisplay:    "Jane Doe",
		AuthorEmail:      "jane@example.com",
		CommitterDisplay: "Jane Doe",
		CommitterEmail:   "jane@example.com",
		Title:            "updated stuff.",
	}
	cfg := policy.Config{Domains: []string{"example.com"}}
	vs := policy.Check(context.Background(), c, cfg, nil)
	ids := ruleIDs(vs)
	for _, want := range []string{
		"title-imperative-tense-check",
		"title-capitalization-check",
		"title-verb-check",
		"title-whitespace-punctuation-check",
	} {
		if !contains(ids, want) {
			t.Errorf("expected violation %q, got %v", want, ids)
		}
	}
}

func TestCheckEmissionOrderIsFixed(t *testing.T) {
	c := commitlog.Commit{
		SHA:              "abc",
		AuthorDisplay:    "root",
		AuthorEmail:      "root@bad.com",
		CommitterDisplay: "root",
		CommitterEmail:   "root@bad.com",
		Title:            "updated stuff.",
		IsMerge:          true,
	}
	cfg := policy.Config{Domains: []string{"example.com"}}
	vs := policy.Check(context.Background(), c, cfg, nil)
	ids := ruleIDs(vs)
	wantOrder := []string{
		"author-root-check",
		"author-real-name-check", // "root" has no space either
		"author-valid-domain-check",
		"committer-root-check",
		"committer-real-name-check",
		"committer-valid-domain-check",
		"title-imperative-tense-check",
		"title-capitalization-check",
		"title-verb-check",
		"title-whitespace-punctuation-check",
		"body-check",
		"commit-merge-check",
	}
	if len(ids) != len(wantOrder) {
		t.Fatalf("got violations %v, want %v", ids, wantOrder)
	}
	for i, want := range wantOrder {
		if ids[i] != want {
			t.Errorf("violation %d = %q, want %q", i, ids[i], want)
		}
	}
}

func TestCheckDiffWhitespace(t *testing.T) {
	sep := ""
	c := commitlog.Commit{
		SHA:              "abc",
		AuthorDisplay:    "Jane Doe",
		AuthorEmail:      "jane@example.com",
		CommitterDisplay: "Jane Doe",
		CommitterEmail:   "jane@example.com",
		Title:            "Add user table",
		SeparatorLine:    &sep,
		BodyLines:        []string{"body"},
	}
	cfg := policy.Config{Domains: []string{"example.com"}}
	showCheck := func(ctx context.Context, sha string) (bool, error) { return true, nil }
	vs := policy.Check(context.Background(), c, cfg, showCheck)
	if !contains(ruleIDs(vs), "diff-whitespace-check") {
		t.Errorf("expected diff-whitespace-check violation, got %v", ruleIDs(vs))
	}
}

func TestCheckBodyLineTooLong(t *testing.T) {
	sep := ""
	longLine := ""
	for i := 0; i < 80; i++ {
		longLine += "x"
	}
	c := commitlog.Commit{
		SHA:              "abc",
		AuthorDisplay:    "Jane Doe",
		AuthorEmail:      "jane@example.com",
		CommitterDisplay: "Jane Doe",
		CommitterEmail:   "jane@example.com",
		Title:            "Add user table",
		SeparatorLine:    &sep,
		BodyLines:        []string{longLine},
	}
	cfg := policy.Config{Domains: []string{"example.com"}}
	vs := policy.Check(context.Background(), c, cfg, nil)
	if !contains(ruleIDs(vs), "body-length-check") {
		t.Errorf("expected body-length-check violation, got %v", ruleIDs(vs))
	}
}
