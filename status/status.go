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

// Package status idempotently publishes per-commit and branch-level
// check statuses from policy violations, reconciling against whatever
// was already posted rather than blindly re-posting.
package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/guyincognito/gitbot/policy"
)

const (
	// namespace prefixes every context this bot publishes.
	namespace = "gitbot"
	// BranchCheckRuleID is the rule_id used for the branch-level roll-up.
	BranchCheckRuleID = "branch-check"
)

// PlatformStatus is one status entry as returned by ListStatuses.
type PlatformStatus struct {
	Context string
	State   string
}

// Platform is the subset of the Platform Gateway the reconciler needs.
type Platform interface {
	ListStatuses(ctx context.Context, org, repo, sha string) ([]PlatformStatus, error)
	PostStatus(ctx context.Context, org, repo, sha string, ctxName, state, description string) error
}

// Reconciler publishes per-commit and branch-level statuses, never
// retracting a previously posted failure.
type Reconciler struct {
	platform Platform
	limiter  *rate.Limiter
}

// New builds a Reconciler that spaces consecutive posts by roughly one
// second, to respect the platform's rate limits.
func New(platform Platform) *Reconciler {
	return &Reconciler{
		platform: platform,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func contextFor(ruleID string) string {
	return fmt.Sprintf("%s-%s", namespace, ruleID)
}

// ReconcileCommit posts any violation in violations whose context isn't
// already in a failure state for sha. Returns whether this commit had any
// violations at all, which callers use to decide on the branch roll-up.
func (r *Reconciler) ReconcileCommit(ctx context.Context, org, repo, sha string, violations []policy.Violation) (hadFailures bool, err error) {
	if len(violations) == 0 {
		return false, nil
	}
	existing, err := r.platform.ListStatuses(ctx, org, repo, sha)
	if err != nil {
		return false, err
	}
	alreadyFailing := make(map[string]bool)
	for _, s := range existing {
		if strings.HasPrefix(s.Context, namespace) && s.State == "failure" {
			alreadyFailing[s.Context] = true
		}
	}

	for _, v := range violations {
		ctxName := contextFor(v.RuleID)
		if alreadyFailing[ctxName] {
			continue
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return true, err
		}
		if err := r.platform.PostStatus(ctx, org, repo, sha, ctxName, "failure", v.Message); err != nil {
			return true, err
		}
	}
	return true, nil
}

// ReconcileBranch applies the same idempotent procedure to the branch
// head commit with the fixed branch-check context, when any commit in
// the scan had failures.
func (r *Reconciler) ReconcileBranch(ctx context.Context, org, repo, headSHA string) error {
	existing, err := r.platform.ListStatuses(ctx, org, repo, headSHA)
	if err != nil {
		return err
	}
	ctxName := contextFor(BranchCheckRuleID)
	for _, s := range existing {
		if strings.HasPrefix(s.Context, namespace) && s.Context == ctxName && s.State == "failure" {
			return nil
		}
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	return r.platform.PostStatus(ctx, org, repo, headSHA, ctxName, "failure", "Branch contains commits in failure state")
}
