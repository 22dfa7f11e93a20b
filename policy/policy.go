/*
Copyright 2016 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package policy applies the closed set of per-commit rules and produces
// ordered violations. Every rule_id here becomes a status context
// ("gitbot-" + rule_id) published by package status, so the rule_ids and
// their order are part of the external contract, not an implementation
// detail.
package policy

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/guyincognito/gitbot/commitlog"
)

// Violation is one rule failure for one commit.
type Violation struct {
	RuleID  string
	Message string
}

// Config carries the allow-lists the checker needs.
type Config struct {
	// Domains is the allow-listed set of email domains for both author
	// and committer.
	Domains []string
}

// ShowCheck is satisfied by git.Repo.ShowCheck, used only by
// diff-whitespace-check.
type ShowCheck func(ctx context.Context, sha string) (bool, error)

var titleVerbs = map[string]bool{
	"Add": true, "Bump": true, "Change": true, "Create": true, "Disable": true,
	"Enable": true, "Fix": true, "Move": true, "Refactor": true, "Remove": true,
	"Replace": true, "Revert": true, "Set": true, "Update": true, "Upgrade": true,
	"Use": true,
}

type rule struct {
	id    string
	check func(ctx context.Context, c commitlog.Commit, cfg Config, showCheck ShowCheck) (bool, string)
}

// rules is declared in the fixed order violations are emitted and
// published in; the order here IS the contract, not incidental layout.
var rules = []rule{
	{"author-root-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		return c.AuthorDisplay == "root", "commit author display name is \"root\""
	}},
	{"author-real-name-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		return !strings.Contains(c.AuthorDisplay, " "), "commit author display name does not look like a real name"
	}},
	{"author-valid-domain-check", func(_ context.Context, c commitlog.Commit, cfg Config, _ ShowCheck) (bool, string) {
		ok := domainAllowed(c.AuthorEmail, cfg.Domains)
		return !ok, fmt.Sprintf("commit author email %q is not in an allowed domain", c.AuthorEmail)
	}},
	{"committer-root-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		return c.CommitterDisplay == "root", "commit committer display name is \"root\""
	}},
	{"committer-real-name-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		return !strings.Contains(c.CommitterDisplay, " "), "commit committer display name does not look like a real name"
	}},
	{"committer-valid-domain-check", func(_ context.Context, c commitlog.Commit, cfg Config, _ ShowCheck) (bool, string) {
		ok := domainAllowed(c.CommitterEmail, cfg.Domains)
		return !ok, fmt.Sprintf("commit committer email %q is not in an allowed domain", c.CommitterEmail)
	}},
	{"title-imperative-tense-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		w := firstWord(c.Title)
		return strings.HasSuffix(w, "ed") || strings.HasSuffix(w, "ing") || strings.HasSuffix(w, "s"),
			"title should be in the imperative mood, e.g. \"Fix bug\" not \"Fixed bug\""
	}},
	{"title-capitalization-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		w := firstWord(c.Title)
		if w == "" {
			return true, "title is empty"
		}
		r := []rune(w)[0]
		return !unicode.IsUpper(r), "title should start with a capital letter"
	}},
	{"title-verb-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		w := firstWord(c.Title)
		return !titleVerbs[w], fmt.Sprintf("title should start with one of the allowed verbs, got %q", w)
	}},
	{"title-fixup-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		return strings.HasPrefix(c.Title, "fixup!"), "title begins with \"fixup!\""
	}},
	{"title-squash-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		return strings.HasPrefix(c.Title, "squash!"), "title begins with \"squash!\""
	}},
	{"title-whitespace-punctuation-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		rest := strings.TrimPrefix(c.Title, firstWord(c.Title))
		if rest == "" {
			return false, ""
		}
		last := []rune(rest)
		r := last[len(last)-1]
		return unicode.IsSpace(r) || !isWordChar(r), "title ends with whitespace or punctuation"
	}},
	{"title-length-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		return len(c.Title) > 50, fmt.Sprintf("title is %d characters, must be 50 or fewer", len(c.Title))
	}},
	{"message-separator-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		return c.SeparatorLine != nil && *c.SeparatorLine != "", "commit message title is not followed by a blank line"
	}},
	{"body-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		return len(c.BodyLines) == 0, "commit message has no body"
	}},
	{"body-length-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		for _, line := range c.BodyLines {
			if len(line) > 72 {
				return true, "commit message body has a line longer than 72 characters"
			}
		}
		return false, ""
	}},
	{"commit-merge-check", func(_ context.Context, c commitlog.Commit, _ Config, _ ShowCheck) (bool, string) {
		return c.IsMerge, "commit is a merge commit"
	}},
	{"diff-whitespace-check", func(ctx context.Context, c commitlog.Commit, _ Config, showCheck ShowCheck) (bool, string) {
		if showCheck == nil {
			return false, ""
		}
		bad, err := showCheck(ctx, c.SHA)
		if err != nil || !bad {
			return false, ""
		}
		return true, "diff introduces whitespace errors"
	}},
}

// Check applies every rule to c in the fixed order above and returns the
// accrued violations. A given commit may accrue multiple violations;
// rules are independent of one another.
func Check(ctx context.Context, c commitlog.Commit, cfg Config, showCheck ShowCheck) []Violation {
	var out []Violation
	for _, r := range rules {
		if violated, msg := r.check(ctx, c, cfg, showCheck); violated {
			out = append(out, Violation{RuleID: r.id, Message: msg})
		}
	}
	return out
}

func firstWord(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func domainAllowed(email string, domains []string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range domains {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}
