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

// Package git is a thin, typed wrapper over the git binary: fetch, branch,
// update-ref, log, diff, show, ls-remote, merge-base. No caller ever
// interpolates an untrusted string into a command line; every argument
// that becomes part of a ref name is validated against a known grammar
// first.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// VCSError wraps a non-zero exit from a git invocation that isn't one of
// the boolean predicates (IsAncestor, ShowCheck).
type VCSError struct {
	Args     []string
	Stderr   string
	ExitCode int
}

func (e *VCSError) Error() string {
	return fmt.Sprintf("git %s: exit %d: %s", strings.Join(e.Args, " "), e.ExitCode, e.Stderr)
}

// refSegmentRE matches a single "/"-separated ref path segment: no
// whitespace, no shell metacharacters, no leading dash (which git would
// otherwise interpret as a flag).
var refSegmentRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateRefName rejects anything that isn't a "/"-separated sequence of
// safe segments, so a caller can never smuggle a flag or shell token into
// a ref argument.
func ValidateRefName(ref string) error {
	if ref == "" {
		return fmt.Errorf("git: empty ref name")
	}
	for _, seg := range strings.Split(ref, "/") {
		if !refSegmentRE.MatchString(seg) {
			return fmt.Errorf("git: ref %q has invalid segment %q", ref, seg)
		}
	}
	return nil
}

// Repo is a typed wrapper around one shared on-disk git repository: the
// bot's snapshot registry. It is not safe for concurrent use by design
// (see the family-lock discipline in package registry); callers serialize
// access per PR family and treat (fetch, read FETCH_HEAD) as one critical
// section.
type Repo struct {
	Dir string

	// fetchLimiter smooths fetch/ls-remote calls to roughly one per
	// second, tolerating the upstream platform's eventual consistency in
	// ref advertisement. Shared process-wide: it is not a per-repo rate,
	// it is a politeness delay toward one upstream.
	fetchLimiter *rate.Limiter
}

// NewRepo wraps an existing working directory as a registry repo.
func NewRepo(dir string) *Repo {
	return &Repo{
		Dir:          dir,
		fetchLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return "", &VCSError{Args: args, Stderr: stderr.String(), ExitCode: exitCode}
	}
	return stdout.String(), nil
}

// runCheck runs a command whose exit code is itself the result (0 = true,
// 1 = false), rather than an error signal. Any other exit code is still a
// VCSError: those two are the only documented outcomes. Fits
// "merge-base --is-ancestor"; NOT "diff --check", which exits 2 on
// findings (see ShowCheck).
func (r *Repo) runCheck(ctx context.Context, args ...string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if ee, ok := err.(*exec.ExitError); ok {
		code := ee.ExitCode()
		if code == 1 {
			return false, nil
		}
		return false, &VCSError{Args: args, Stderr: stderr.String(), ExitCode: code}
	}
	return false, err
}

// Fetch retrieves refspec from remote. Waits on the shared quiescence
// limiter first.
func (r *Repo) Fetch(ctx context.Context, remote, refspec string) error {
	if err := r.fetchLimiter.Wait(ctx); err != nil {
		return err
	}
	_, err := r.run(ctx, "fetch", remote, refspec)
	return err
}

// CreateBranch creates ref at startPoint. ref must already be fetched or
// otherwise resolvable (e.g. FETCH_HEAD).
func (r *Repo) CreateBranch(ctx context.Context, ref, startPoint string) error {
	if err := ValidateRefName(ref); err != nil {
		return err
	}
	_, err := r.run(ctx, "branch", ref, startPoint)
	return err
}

// UpdateRef moves ref to sha.
func (r *Repo) UpdateRef(ctx context.Context, ref, sha string) error {
	if err := ValidateRefName(ref); err != nil {
		return err
	}
	_, err := r.run(ctx, "update-ref", "refs/heads/"+ref, sha)
	return err
}

// Branch is one entry returned by ListBranches.
type Branch struct {
	Ref string
	SHA string
}

// ListBranches returns every local branch matching glob, in git's own
// ordering, each with its current SHA.
func (r *Repo) ListBranches(ctx context.Context, glob string) ([]Branch, error) {
	out, err := r.run(ctx, "for-each-ref", "--format=%(refname:short) %(objectname)", "refs/heads/"+glob)
	if err != nil {
		return nil, err
	}
	var branches []Branch
	for _, line := range splitNonEmptyLines(out) {
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}
		branches = append(branches, Branch{Ref: fields[0], SHA: fields[1]})
	}
	return branches, nil
}

// RemoteRef is one entry returned by LsRemote.
type RemoteRef struct {
	SHA string
	Ref string
}

// LsRemote lists refs on remote matching pattern.
func (r *Repo) LsRemote(ctx context.Context, remote, pattern string) ([]RemoteRef, error) {
	if err := r.fetchLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := r.run(ctx, "ls-remote", remote, pattern)
	if err != nil {
		return nil, err
	}
	var refs []RemoteRef
	for _, line := range splitNonEmptyLines(out) {
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			continue
		}
		refs = append(refs, RemoteRef{SHA: fields[0], Ref: fields[1]})
	}
	return refs, nil
}

// LogFull returns the raw "git log --format=full" text for rangeExpr
// (e.g. "base..head"), for consumption by package commitlog.
func (r *Repo) LogFull(ctx context.Context, rangeExpr string) (string, error) {
	return r.run(ctx, "log", "--format=full", rangeExpr)
}

// LogOneline returns the raw "git log --oneline" text for rangeExpr.
func (r *Repo) LogOneline(ctx context.Context, rangeExpr string) (string, error) {
	return r.run(ctx, "log", "--oneline", rangeExpr)
}

// Log returns the raw "git log" text for rangeExpr, optionally including
// each commit's unified diff (-p), for the commit-log diff views.
func (r *Repo) Log(ctx context.Context, rangeExpr string, withPatch bool) (string, error) {
	args := []string{"log"}
	if withPatch {
		args = append(args, "-p")
	}
	args = append(args, rangeExpr)
	return r.run(ctx, args...)
}

// DiffOptions controls prefix naming for Diff, matching the platform's
// diff view which labels sides as e.g. "rebase-0" vs "rebase-1" rather
// than git's default a/ b/.
type DiffOptions struct {
	SrcPrefix string
	DstPrefix string
}

// Diff returns the raw unified diff text for rangeExpr (e.g. "a..b").
func (r *Repo) Diff(ctx context.Context, rangeExpr string, opts DiffOptions) (string, error) {
	args := []string{"diff"}
	if opts.SrcPrefix != "" {
		args = append(args, "--src-prefix="+opts.SrcPrefix+"/")
	}
	if opts.DstPrefix != "" {
		args = append(args, "--dst-prefix="+opts.DstPrefix+"/")
	}
	args = append(args, rangeExpr)
	return r.run(ctx, args...)
}

// ShowCheck reports whether sha's diff against its first parent has
// whitespace issues. "git diff --check" exits 0 on a clean diff and
// non-zero (2 in practice) when it finds problems, so any exit failure
// reads as "issues found"; only failing to run git at all is an error.
func (r *Repo) ShowCheck(ctx context.Context, sha string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--check", sha+"^!")
	cmd.Dir = r.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return false, nil
	}
	if _, ok := err.(*exec.ExitError); ok {
		return true, nil
	}
	return false, err
}

// IsAncestor reports whether a is an ancestor of b. The underlying git
// command exits 0 when the relation holds and 1 when it doesn't; callers
// must read this as "is-ancestor", not as "no error occurred" (see
// package classify's explicit note on this polarity).
func (r *Repo) IsAncestor(ctx context.Context, a, b string) (bool, error) {
	return r.runCheck(ctx, "merge-base", "--is-ancestor", a, b)
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
