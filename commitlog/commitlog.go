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

// Package commitlog parses the raw text of "git log --format=full" into
// structured commit records, via a small state machine driven by each
// line's literal prefix.
package commitlog

import (
	"fmt"
	"strings"
)

// Commit is one parsed record from a full-format git log.
type Commit struct {
	SHA              string
	IsMerge          bool
	AuthorDisplay    string
	AuthorEmail      string
	CommitterDisplay string
	CommitterEmail   string
	Title            string
	SeparatorLine    *string
	BodyLines        []string
}

// MalformedLog is returned when a line appears in a state that doesn't
// expect it.
type MalformedLog struct {
	Line  string
	State string
}

func (e *MalformedLog) Error() string {
	return fmt.Sprintf("commitlog: unexpected line %q in state %s", e.Line, e.State)
}

type state int

const (
	stateSeparator state = iota
	stateCommitSHA
	stateMerge
	stateAuthor
	stateCommitter
	stateMiddleSeparator
	stateTitle
	stateBlank
	stateBody
)

func (s state) String() string {
	switch s {
	case stateSeparator:
		return "SEPARATOR"
	case stateCommitSHA:
		return "COMMIT_SHA"
	case stateMerge:
		return "MERGE"
	case stateAuthor:
		return "AUTHOR"
	case stateCommitter:
		return "COMMITTER"
	case stateMiddleSeparator:
		return "MIDDLE_SEPARATOR"
	case stateTitle:
		return "TITLE"
	case stateBlank:
		return "BLANK"
	case stateBody:
		return "BODY"
	}
	return "UNKNOWN"
}

// Parse consumes the raw text of "git log --format=full" between two
// refs and returns the commits in the order they appear (newest first,
// matching git's own default order).
func Parse(raw string) ([]Commit, error) {
	var commits []Commit
	var cur Commit
	st := stateSeparator
	haveRecord := false

	emit := func() {
		if haveRecord {
			commits = append(commits, cur)
		}
		cur = Commit{}
		haveRecord = false
		st = stateSeparator
	}

	lines := strings.Split(raw, "\n")
	for _, line := range lines {
		indented := strings.HasPrefix(line, "    ")
		trimmed := strings.TrimPrefix(line, "    ")

		switch st {
		case stateSeparator:
			if strings.TrimSpace(line) == "" {
				continue
			}
			if !strings.HasPrefix(line, "commit ") {
				return nil, &MalformedLog{Line: line, State: st.String()}
			}
			cur = Commit{SHA: strings.TrimPrefix(line, "commit ")}
			haveRecord = true
			st = stateCommitSHA

		case stateCommitSHA:
			if strings.HasPrefix(line, "Merge:") {
				cur.IsMerge = true
				st = stateMerge
				continue
			}
			if err := parseAuthorLine(line, &cur); err != nil {
				return nil, err
			}
			st = stateAuthor

		case stateMerge:
			if err := parseAuthorLine(line, &cur); err != nil {
				return nil, err
			}
			st = stateAuthor

		case stateAuthor:
			if err := parseCommitterLine(line, &cur); err != nil {
				return nil, err
			}
			st = stateCommitter

		case stateCommitter:
			if strings.TrimSpace(line) != "" {
				return nil, &MalformedLog{Line: line, State: st.String()}
			}
			st = stateMiddleSeparator

		case stateMiddleSeparator:
			if !indented {
				return nil, &MalformedLog{Line: line, State: st.String()}
			}
			cur.Title = trimmed
			st = stateTitle

		// Message lines all carry the four-space prefix, including blank
		// ones; only the record separator between commits is a truly
		// empty line. That is what distinguishes a paragraph break inside
		// a body from the end of the record.
		case stateTitle:
			if line == "" {
				emit()
				continue
			}
			if !indented {
				return nil, &MalformedLog{Line: line, State: st.String()}
			}
			sep := trimmed
			cur.SeparatorLine = &sep
			st = stateBlank

		case stateBlank, stateBody:
			if line == "" {
				emit()
				continue
			}
			if !indented {
				return nil, &MalformedLog{Line: line, State: st.String()}
			}
			cur.BodyLines = append(cur.BodyLines, trimmed)
			st = stateBody
		}
	}

	// EOF emits whatever record was in progress.
	emit()
	return commits, nil
}

func parseAuthorLine(line string, c *Commit) error {
	const prefix = "Author: "
	if !strings.HasPrefix(line, prefix) {
		return &MalformedLog{Line: line, State: stateCommitSHA.String()}
	}
	display, email := splitDisplayEmail(strings.TrimPrefix(line, prefix))
	c.AuthorDisplay, c.AuthorEmail = display, email
	return nil
}

func parseCommitterLine(line string, c *Commit) error {
	const prefix = "Commit: "
	if !strings.HasPrefix(line, prefix) {
		return &MalformedLog{Line: line, State: stateAuthor.String()}
	}
	display, email := splitDisplayEmail(strings.TrimPrefix(line, prefix))
	c.CommitterDisplay, c.CommitterEmail = display, email
	return nil
}

// splitDisplayEmail parses "Display Name <email@host>" into its parts.
func splitDisplayEmail(s string) (display, email string) {
	open := strings.LastIndex(s, "<")
	shut := strings.LastIndex(s, ">")
	if open < 0 || shut < 0 || shut < open {
		return strings.TrimSpace(s), ""
	}
	display = strings.TrimSpace(s[:open])
	email = s[open+1 : shut]
	return display, email
}
