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

// Package registry implements the snapshot registry: create/list/advance
// rebase snapshots for a PR family, backed by package git's named refs.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/guyincognito/gitbot/refs"
)

// AlreadyInitialized is returned by Initialize when a ref for the family
// already exists.
type AlreadyInitialized struct {
	Coordinates refs.Coordinates
}

func (e *AlreadyInitialized) Error() string {
	return fmt.Sprintf("registry: family %s is already initialized", e.Coordinates)
}

// PartialCreation is returned when one of a rebase's two pointers failed
// to create. It is logged, not rolled back: refs are cheap, and the next
// delivery's scan takes the max over whatever actually exists.
type PartialCreation struct {
	Coordinates refs.Coordinates
	N           int
	Pointer     refs.Pointer
	Cause       error
}

func (e *PartialCreation) Error() string {
	return fmt.Sprintf("registry: failed to create %s pointer for %s rebase %d: %v", e.Pointer, e.Coordinates, e.N, e.Cause)
}

// VCS is the subset of the VCS Gateway the registry needs.
type VCS interface {
	Fetch(ctx context.Context, remote, refspec string) error
	CreateBranch(ctx context.Context, ref, startPoint string) error
	UpdateRef(ctx context.Context, ref, sha string) error
	ListBranches(ctx context.Context, glob string) ([]BranchLike, error)
}

// BranchLike mirrors git.Branch without importing package git, so
// registry stays independently testable against a fake.
type BranchLike struct {
	Ref string
	SHA string
}

// RemoteFor maps a tracked (org, repo) to the remote its refs are fetched
// from, e.g. an SSH URL built from the configured hostname.
type RemoteFor func(org, repo string) string

// Registry creates, lists, and advances snapshots for PR families. A
// Registry is safe for concurrent use across different families; callers
// serialize operations on the same family using the per-family lock this
// type hands out via Lock.
type Registry struct {
	vcs       VCS
	remoteFor RemoteFor

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// New builds a Registry operating against vcs, fetching each family's
// refs from the remote remoteFor names for it.
func New(vcs VCS, remoteFor RemoteFor) *Registry {
	return &Registry{
		vcs:       vcs,
		remoteFor: remoteFor,
		locks:     make(map[string]*semaphore.Weighted),
	}
}

// Lock acquires the family-scoped serialization lock for (org, repo,
// prNumber). The key deliberately omits the base branch: a push payload
// carries no base branch, and callers must be able to take the lock
// before discovering the family's full coordinates, so that values read
// from the registry (like the current rebase number) cannot go stale
// between the read and the mutation they gate. Callers hold the lock for
// the entire (fetch -> use FETCH_HEAD) critical section, not just for
// the registry calls themselves.
func (r *Registry) Lock(ctx context.Context, org, repo string, prNumber int) (func(), error) {
	key := fmt.Sprintf("%s/%s/%d", org, repo, prNumber)

	r.mu.Lock()
	sem, ok := r.locks[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		r.locks[key] = sem
	}
	r.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}

// Initialize fetches headRef and creates rebase-0's base and head
// snapshots at its tip. Must be called with the family lock held.
func (r *Registry) Initialize(ctx context.Context, coords refs.Coordinates, headRef string) error {
	existing, err := r.CurrentRebase(ctx, coords)
	if err != nil {
		return err
	}
	if existing >= 0 {
		return &AlreadyInitialized{Coordinates: coords}
	}
	if err := r.vcs.Fetch(ctx, r.remoteFor(coords.Org, coords.Repo), headRef); err != nil {
		return err
	}
	return r.createPointerPair(ctx, coords, 0, "FETCH_HEAD")
}

// CurrentRebase scans existing snapshots for coords and returns the
// maximum rebase number, or -1 if none exist.
func (r *Registry) CurrentRebase(ctx context.Context, coords refs.Coordinates) (int, error) {
	branches, err := r.vcs.ListBranches(ctx, refs.EnumeratePattern(coords))
	if err != nil {
		return 0, err
	}
	max := -1
	for _, b := range branches {
		parsedCoords, _, n, err := refs.Parse(b.Ref)
		if err != nil {
			continue
		}
		if parsedCoords != coords {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}

// AdvanceHead fast-forwards the head pointer of the current rebase to
// tipSHA, leaving base untouched. Must be called with the family lock
// held, and with tipSHA already fetched/resolvable.
func (r *Registry) AdvanceHead(ctx context.Context, coords refs.Coordinates, tipSHA string) error {
	n, err := r.CurrentRebase(ctx, coords)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("registry: family %s has no snapshots to advance", coords)
	}
	return r.vcs.UpdateRef(ctx, refs.Build(coords, refs.Head, n), tipSHA)
}

// OpenNewRebase creates the next rebase's base and head pointers at
// tipSHA, returning the new rebase number. Must be called with the
// family lock held, and with tipSHA already fetched/resolvable.
func (r *Registry) OpenNewRebase(ctx context.Context, coords refs.Coordinates, tipSHA string) (int, error) {
	current, err := r.CurrentRebase(ctx, coords)
	if err != nil {
		return 0, err
	}
	newN := current + 1
	if err := r.createPointerPair(ctx, coords, newN, tipSHA); err != nil {
		return 0, err
	}
	return newN, nil
}

func (r *Registry) createPointerPair(ctx context.Context, coords refs.Coordinates, n int, startPoint string) error {
	baseRef := refs.Build(coords, refs.Base, n)
	if err := r.vcs.CreateBranch(ctx, baseRef, startPoint); err != nil {
		return &PartialCreation{Coordinates: coords, N: n, Pointer: refs.Base, Cause: err}
	}
	headRef := refs.Build(coords, refs.Head, n)
	if err := r.vcs.CreateBranch(ctx, headRef, startPoint); err != nil {
		return &PartialCreation{Coordinates: coords, N: n, Pointer: refs.Head, Cause: err}
	}
	return nil
}

// DiscoverFamily scans every rebase ref for (org, repo, prNumber) without
// knowing base_branch up front -- the shape a push event arrives in,
// since GitHub's push payload carries no base branch. ok is false if the
// family has no refs yet (e.g. the opening pull_request delivery was
// never processed).
func (r *Registry) DiscoverFamily(ctx context.Context, org, repo string, prNumber int) (coords refs.Coordinates, currentRebase int, ok bool, err error) {
	pattern := fmt.Sprintf("%s/%s/PR/%d/*/rebase-*/*", org, repo, prNumber)
	branches, err := r.vcs.ListBranches(ctx, pattern)
	if err != nil {
		return refs.Coordinates{}, 0, false, err
	}
	max := -1
	for _, b := range branches {
		parsed, _, n, perr := refs.Parse(b.Ref)
		if perr != nil || parsed.Org != org || parsed.Repo != repo || parsed.PRNumber != prNumber {
			continue
		}
		coords = parsed
		if n > max {
			max = n
		}
	}
	if max < 0 {
		return refs.Coordinates{}, 0, false, nil
	}
	return coords, max, true, nil
}

// Snapshot is one (n, pointer, sha) entry returned by Snapshots.
type Snapshot struct {
	N       int
	Pointer refs.Pointer
	SHA     string
}

// Snapshots returns every (n, pointer, sha) triple for coords, sorted by
// rebase number then pointer.
func (r *Registry) Snapshots(ctx context.Context, coords refs.Coordinates) ([]Snapshot, error) {
	branches, err := r.vcs.ListBranches(ctx, refs.EnumeratePattern(coords))
	if err != nil {
		return nil, err
	}
	var out []Snapshot
	for _, b := range branches {
		parsedCoords, pointer, n, err := refs.Parse(b.Ref)
		if err != nil || parsedCoords != coords {
			continue
		}
		out = append(out, Snapshot{N: n, Pointer: pointer, SHA: b.SHA})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N < out[j].N
		}
		return out[i].Pointer < out[j].Pointer
	})
	return out, nil
}
