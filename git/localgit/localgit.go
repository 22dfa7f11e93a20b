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

// Package localgit builds scratch git repositories on disk for tests, the
// same way the rest of this codebase's test suites avoid mocking git
// itself: every operation here shells out to a real git binary against a
// throwaway directory.
package localgit

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// LocalGit manages a "remote" bare repository plus a scratch worktree used
// to populate it with commits.
type LocalGit struct {
	Dir      string // holds bare repos, one subdirectory per "org/repo"
	worktree string // scratch worktree used for AddCommit et al.
}

// New creates a LocalGit with fresh scratch directories.
func New() (*LocalGit, error) {
	dir, err := ioutil.TempDir("", "localgit-remotes")
	if err != nil {
		return nil, err
	}
	wt, err := ioutil.TempDir("", "localgit-worktree")
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return &LocalGit{Dir: dir, worktree: wt}, nil
}

// Clean removes every scratch directory.
func (lg *LocalGit) Clean() error {
	if err := os.RemoveAll(lg.Dir); err != nil {
		return err
	}
	return os.RemoveAll(lg.worktree)
}

func (lg *LocalGit) repoDir(org, repo string) string {
	return filepath.Join(lg.Dir, org, repo)
}

func (lg *LocalGit) wtDir(org, repo string) string {
	return filepath.Join(lg.worktree, org, repo)
}

func run(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s (in %s): %v: %s", strings.Join(args, " "), dir, err, out)
	}
	return nil
}

func runOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s (in %s): %v", strings.Join(args, " "), dir, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// MakeFakeRepo creates a new bare "remote" repository plus a worktree
// with an initial commit on master.
func (lg *LocalGit) MakeFakeRepo(org, repo string) error {
	bare := lg.repoDir(org, repo)
	if err := os.MkdirAll(bare, 0755); err != nil {
		return err
	}
	if err := run(bare, "init", "--bare"); err != nil {
		return err
	}

	wt := lg.wtDir(org, repo)
	if err := os.MkdirAll(wt, 0755); err != nil {
		return err
	}
	if err := run(wt, "init"); err != nil {
		return err
	}
	if err := run(wt, "config", "user.name", "localgit"); err != nil {
		return err
	}
	if err := run(wt, "config", "user.email", "localgit@localhost"); err != nil {
		return err
	}
	if err := run(wt, "commit", "--allow-empty", "-m", "initial commit"); err != nil {
		return err
	}
	if err := run(wt, "branch", "-M", "master"); err != nil {
		return err
	}
	if err := run(wt, "remote", "add", "origin", bare); err != nil {
		return err
	}
	return run(wt, "push", "origin", "master")
}

// AddCommit writes files into the worktree's current branch, commits, and
// pushes to the bare remote.
func (lg *LocalGit) AddCommit(org, repo string, files map[string][]byte) error {
	wt := lg.wtDir(org, repo)
	for name, content := range files {
		if err := ioutil.WriteFile(filepath.Join(wt, name), content, 0644); err != nil {
			return err
		}
	}
	if err := run(wt, "add", "."); err != nil {
		return err
	}
	if err := run(wt, "commit", "-m", "add "+joinKeys(files)); err != nil {
		return err
	}
	branch, err := runOutput(wt, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return err
	}
	return run(wt, "push", "origin", branch)
}

// CheckoutNewBranch creates and pushes a new branch at the current HEAD.
func (lg *LocalGit) CheckoutNewBranch(org, repo, branch string) error {
	wt := lg.wtDir(org, repo)
	if err := run(wt, "checkout", "-b", branch); err != nil {
		return err
	}
	return run(wt, "push", "origin", branch)
}

// Checkout switches the worktree to an existing branch.
func (lg *LocalGit) Checkout(org, repo, branch string) error {
	return run(lg.wtDir(org, repo), "checkout", branch)
}

// RevParse resolves rev in the worktree.
func (lg *LocalGit) RevParse(org, repo, rev string) (string, error) {
	return runOutput(lg.wtDir(org, repo), "rev-parse", rev)
}

// PushRef force-pushes localRef to the named ref on the bare remote,
// simulating a rebase/force-push delivery for Repo.Fetch to observe.
func (lg *LocalGit) PushRef(org, repo, localRef, remoteRef string) error {
	return run(lg.wtDir(org, repo), "push", "--force", "origin", localRef+":"+remoteRef)
}

// RemoteURL returns the bare repository path suitable for Repo.Fetch.
func (lg *LocalGit) RemoteURL(org, repo string) string {
	return lg.repoDir(org, repo)
}

func joinKeys(m map[string][]byte) string {
	var names []string
	for name := range m {
		names = append(names, name)
	}
	return strings.Join(names, ",")
}
