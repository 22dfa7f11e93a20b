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

package hook

import (
	"context"

	"github.com/guyincognito/gitbot/git"
	"github.com/guyincognito/gitbot/github"
	"github.com/guyincognito/gitbot/registry"
	"github.com/guyincognito/gitbot/status"
)

// vcsAdapter narrows *git.Repo to registry.VCS. The two packages define
// structurally identical branch types on purpose, so registry can be
// tested without importing git; this is the only place that bridges them.
type vcsAdapter struct {
	repo *git.Repo
}

func (a vcsAdapter) Fetch(ctx context.Context, remote, refspec string) error {
	return a.repo.Fetch(ctx, remote, refspec)
}

func (a vcsAdapter) CreateBranch(ctx context.Context, ref, startPoint string) error {
	return a.repo.CreateBranch(ctx, ref, startPoint)
}

func (a vcsAdapter) UpdateRef(ctx context.Context, ref, sha string) error {
	return a.repo.UpdateRef(ctx, ref, sha)
}

func (a vcsAdapter) ListBranches(ctx context.Context, glob string) ([]registry.BranchLike, error) {
	branches, err := a.repo.ListBranches(ctx, glob)
	if err != nil {
		return nil, err
	}
	out := make([]registry.BranchLike, len(branches))
	for i, b := range branches {
		out[i] = registry.BranchLike{Ref: b.Ref, SHA: b.SHA}
	}
	return out, nil
}

// platformAdapter narrows *github.Client to status.Platform, translating
// between the gateway's Status struct and the reconciler's flat-args
// shape.
type platformAdapter struct {
	client *github.Client
}

func (a platformAdapter) ListStatuses(ctx context.Context, org, repo, sha string) ([]status.PlatformStatus, error) {
	statuses, err := a.client.ListStatuses(ctx, org, repo, sha)
	if err != nil {
		return nil, err
	}
	out := make([]status.PlatformStatus, len(statuses))
	for i, s := range statuses {
		out[i] = status.PlatformStatus{Context: s.Context, State: s.State}
	}
	return out, nil
}

func (a platformAdapter) PostStatus(ctx context.Context, org, repo, sha, ctxName, state, description string) error {
	return a.client.PostStatus(ctx, org, repo, sha, github.Status{
		Context:     ctxName,
		State:       state,
		Description: description,
	})
}
