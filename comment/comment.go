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

// Package comment composes the rebase comment: a deterministic Markdown
// link grid into the diff-view endpoints, whose shape depends on how many
// snapshots exist for the family.
package comment

import (
	"fmt"
	"net/url"
	"strings"
)

// Input is everything the composer needs to produce one comment.
type Input struct {
	URLRoot    string
	BranchName string // opaque identifier the diff views use to find the family
	Sender     string
	// LatestRebaseBeforePush is the rebase number that was current before
	// this push opened a new one.
	LatestRebaseBeforePush int
}

// Compose produces the Markdown comment for in.
func Compose(in Input) string {
	r := in.LatestRebaseBeforePush
	end := r + 1

	var b strings.Builder
	fmt.Fprintf(&b, "Branch rebased %d time(s), most recently by %s.\n\n", end, in.Sender)

	writePairwiseDiff(&b, in)
	writePairwiseCommitLogDiff(&b, in)

	if end >= 2 {
		var window []int
		if end == 2 {
			window = []int{r - 1, r, end}
		} else {
			window = []int{r - 2, r - 1, r, end}
		}
		writeSeriesDiff(&b, in, window)
		writeSeriesCommitLogDiff(&b, in, window)
	}

	return b.String()
}

func sel(n int, pointer string) string {
	return fmt.Sprintf("%s-%d", pointer, n)
}

func writePairwiseDiff(b *strings.Builder, in Input) {
	r := in.LatestRebaseBeforePush
	end := r + 1
	b.WriteString("**Diff**\n\n")
	pairs := []struct{ label, start, endP string }{
		{"base vs base", sel(r, "base"), sel(end, "base")},
		{"head vs base", sel(r, "head"), sel(end, "base")},
	}
	for _, p := range pairs {
		plain := diffURL(in.URLRoot, "/rebase_diff", in.BranchName, p.start, p.endP, false)
		sideBySide := diffURL(in.URLRoot, "/rebase_diff", in.BranchName, p.start, p.endP, true)
		fmt.Fprintf(b, "- %s: [plain](%s) | [side-by-side](%s)\n", p.label, plain, sideBySide)
	}
	b.WriteString("\n")
}

func writePairwiseCommitLogDiff(b *strings.Builder, in Input) {
	r := in.LatestRebaseBeforePush
	end := r + 1
	b.WriteString("**Commit log diff**\n\n")
	pairs := []struct{ label, start, endP string }{
		{"base vs base", sel(r, "base"), sel(end, "base")},
		{"head vs base", sel(r, "head"), sel(end, "base")},
	}
	for _, p := range pairs {
		plain := commitLogDiffURL(in.URLRoot, in.BranchName, p.start, p.endP, false, false)
		plainSxS := commitLogDiffURL(in.URLRoot, in.BranchName, p.start, p.endP, false, true)
		withDiffs := commitLogDiffURL(in.URLRoot, in.BranchName, p.start, p.endP, true, false)
		withDiffsSxS := commitLogDiffURL(in.URLRoot, in.BranchName, p.start, p.endP, true, true)
		fmt.Fprintf(b, "- %s: [plain](%s) | [plain side-by-side](%s) | [with diffs](%s) | [with diffs side-by-side](%s)\n",
			p.label, plain, plainSxS, withDiffs, withDiffsSxS)
	}
	b.WriteString("\n")
}

func writeSeriesDiff(b *strings.Builder, in Input, window []int) {
	b.WriteString("**Series diff**\n\n")
	heads := seriesURL(in.URLRoot, "/rebase_diff_series", in.BranchName, window, "head")
	bases := seriesURL(in.URLRoot, "/rebase_diff_series", in.BranchName, window, "base")
	fmt.Fprintf(b, "- [branch heads](%s) | [branch bases](%s)\n\n", heads, bases)
}

func writeSeriesCommitLogDiff(b *strings.Builder, in Input, window []int) {
	b.WriteString("**Series commit log diff**\n\n")
	headsPlain := seriesCommitLogURL(in.URLRoot, in.BranchName, window, "head", false)
	headsDiffs := seriesCommitLogURL(in.URLRoot, in.BranchName, window, "head", true)
	basesPlain := seriesCommitLogURL(in.URLRoot, in.BranchName, window, "base", false)
	basesDiffs := seriesCommitLogURL(in.URLRoot, in.BranchName, window, "base", true)
	fmt.Fprintf(b, "- branch heads: [plain](%s) | [with diffs](%s)\n", headsPlain, headsDiffs)
	fmt.Fprintf(b, "- branch bases: [plain](%s) | [with diffs](%s)\n", basesPlain, basesDiffs)
}

func diffURL(root, path, branch, start, end string, sideBySide bool) string {
	v := url.Values{}
	v.Set("branch_name", branch)
	v.Set("rebase_start", start)
	v.Set("rebase_end", end)
	v.Set("side_by_side", boolFlag(sideBySide))
	return root + path + "?" + v.Encode()
}

func commitLogDiffURL(root, branch, start, end string, showDiffs, sideBySide bool) string {
	v := url.Values{}
	v.Set("branch_name", branch)
	v.Set("rebase_start", start)
	v.Set("rebase_end", end)
	v.Set("show_diffs", boolFlag(showDiffs))
	v.Set("side_by_side", boolFlag(sideBySide))
	return root + "/rebase_commit_log_diff?" + v.Encode()
}

var ordinals = []string{"first", "second", "third", "fourth"}

func seriesURL(root, path, branch string, window []int, pointer string) string {
	v := url.Values{}
	v.Set("branch_name", branch)
	for i, n := range window {
		v.Set("rebase_"+ordinals[i], sel(n, pointer))
	}
	return root + path + "?" + v.Encode()
}

func seriesCommitLogURL(root, branch string, window []int, pointer string, showDiffs bool) string {
	v := url.Values{}
	v.Set("branch_name", branch)
	for i, n := range window {
		v.Set("rebase_"+ordinals[i], sel(n, pointer))
	}
	v.Set("show_diffs", boolFlag(showDiffs))
	return root + "/rebase_commit_log_series?" + v.Encode()
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
