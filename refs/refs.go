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

// Package refs builds and parses the canonical snapshot ref naming scheme
// used by the registry to preserve PR branch history across rebases.
package refs

import (
	"fmt"
	"strconv"
	"strings"
)

// Pointer selects which side of a rebase snapshot a ref names.
type Pointer string

const (
	// Base is the branch tip at the moment a rebase snapshot was taken.
	Base Pointer = "base"
	// Head is the (possibly fast-forwarded) tip of a rebase snapshot.
	Head Pointer = "head"
)

// Coordinates identifies a PR snapshot family. BaseBranch may itself
// contain "/" and is carried verbatim into the ref name.
type Coordinates struct {
	Org        string
	Repo       string
	PRNumber   int
	BaseBranch string
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%s/%s/PR/%d/%s", c.Org, c.Repo, c.PRNumber, c.BaseBranch)
}

// Build returns the canonical ref name for a given family, rebase number,
// and pointer:
//
//	<org>/<repo>/PR/<pr_number>/<base_branch>/rebase-<pointer>/<n>
func Build(c Coordinates, p Pointer, n int) string {
	return fmt.Sprintf("%s/rebase-%s/%d", c.String(), p, n)
}

// EnumeratePattern returns a glob matching every existing rebase ref for
// the family, for use with ListBranches.
func EnumeratePattern(c Coordinates) string {
	return fmt.Sprintf("%s/%s/PR/%d/*/rebase-*/*", c.Org, c.Repo, c.PRNumber)
}

// Parse decodes a ref built by Build. Parsing is positional: the first
// four slash-separated segments fix org, repo, "PR", pr_number; the last
// two fix "rebase-<pointer>" and n; everything between is base_branch,
// which may itself contain slashes.
func Parse(ref string) (Coordinates, Pointer, int, error) {
	segs := strings.Split(ref, "/")
	if len(segs) < 6 {
		return Coordinates{}, "", 0, fmt.Errorf("refs: %q has too few segments to be a rebase ref", ref)
	}
	if segs[2] != "PR" {
		return Coordinates{}, "", 0, fmt.Errorf("refs: %q is missing the PR segment", ref)
	}
	prNumber, err := strconv.Atoi(segs[3])
	if err != nil {
		return Coordinates{}, "", 0, fmt.Errorf("refs: %q has a non-numeric pr_number: %v", ref, err)
	}

	last := segs[len(segs)-1]
	n, err := strconv.Atoi(last)
	if err != nil {
		return Coordinates{}, "", 0, fmt.Errorf("refs: %q has a non-numeric rebase number: %v", ref, err)
	}

	rebaseSeg := segs[len(segs)-2]
	const prefix = "rebase-"
	if !strings.HasPrefix(rebaseSeg, prefix) {
		return Coordinates{}, "", 0, fmt.Errorf("refs: %q is missing the rebase-<pointer> segment", ref)
	}
	pointer := Pointer(strings.TrimPrefix(rebaseSeg, prefix))
	if pointer != Base && pointer != Head {
		return Coordinates{}, "", 0, fmt.Errorf("refs: %q has unknown pointer %q", ref, pointer)
	}

	baseBranch := strings.Join(segs[4:len(segs)-2], "/")
	if baseBranch == "" {
		return Coordinates{}, "", 0, fmt.Errorf("refs: %q has an empty base_branch", ref)
	}

	return Coordinates{
		Org:        segs[0],
		Repo:       segs[1],
		PRNumber:   prNumber,
		BaseBranch: baseBranch,
	}, pointer, n, nil
}
