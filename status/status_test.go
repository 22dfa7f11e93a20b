package status_test

import (
	"context"
	"testing"

	"github.com/guyincognito/gitbot/policy"
	"github.com/guyincognito/gitbot/status"
)

type postedStatus struct {
	org, repo, sha, context, state, description string
}

type fakePlatform struct {
	existing map[string][]status.PlatformStatus // keyed by sha
	posted   []postedStatus
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{existing: make(map[string][]status.PlatformStatus)}
}

func (f *fakePlatform) ListStatuses(ctx context.Context, org, repo, sha string) ([]status.PlatformStatus, error) {
	return f.existing[sha], nil
}

func (f *fakePlatform) PostStatus(ctx context.Context, org, repo, sha, ctxName, state, description string) error {
	f.posted = append(f.posted, postedStatus{org, repo, sha, ctxName, state, description})
	f.existing[sha] = append(f.existing[sha], status.PlatformStatus{Context: ctxName, State: state})
	return nil
}

func TestReconcileCommitPostsNewViolations(t *testing.T) {
	p := newFakePlatform()
	r := status.New(p)
	violations := []policy.Violation{
		{RuleID: "title-length-check", Message: "too long"},
		{RuleID: "body-check", Message: "no body"},
	}
	had, err := r.ReconcileCommit(context.Background(), "acme", "widget", "sha1", violations)
	if err != nil {
		t.Fatalf("ReconcileCommit() error: %v", err)
	}
	if !had {
		t.Error("expected hadFailures = true")
	}
	if len(p.posted) != 2 {
		t.Fatalf("got %d posts, want 2: %+v", len(p.posted), p.posted)
	}
	if p.posted[0].context != "gitbot-title-length-check" || p.posted[1].context != "gitbot-body-check" {
		t.Errorf("unexpected contexts: %+v", p.posted)
	}
}

func TestReconcileCommitIdempotent(t *testing.T) {
	p := newFakePlatform()
	r := status.New(p)
	violations := []policy.Violation{{RuleID: "title-length-check", Message: "too long"}}

	if _, err := r.ReconcileCommit(context.Background(), "acme", "widget", "sha1", violations); err != nil {
		t.Fatalf("first ReconcileCommit() error: %v", err)
	}
	firstCount := len(p.posted)

	if _, err := r.ReconcileCommit(context.Background(), "acme", "widget", "sha1", violations); err != nil {
		t.Fatalf("second ReconcileCommit() error: %v", err)
	}
	if len(p.posted) != firstCount {
		t.Errorf("second reconcile posted %d more statuses, want 0 more", len(p.posted)-firstCount)
	}
}

func TestReconcileCommitNoViolationsIsNoop(t *testing.T) {
	p := newFakePlatform()
	r := status.New(p)
	had, err := r.ReconcileCommit(context.Background(), "acme", "widget", "sha1", nil)
	if err != nil {
		t.Fatalf("ReconcileCommit() error: %v", err)
	}
	if had {
		t.Error("expected hadFailures = false for empty violations")
	}
	if len(p.posted) != 0 {
		t.Errorf("expected no posts, got %d", len(p.posted))
	}
}

func TestReconcileBranchUsesFixedContext(t *testing.T) {
	p := newFakePlatform()
	r := status.New(p)
	if err := r.ReconcileBranch(context.Background(), "acme", "widget", "headsha"); err != nil {
		t.Fatalf("ReconcileBranch() error: %v", err)
	}
	if len(p.posted) != 1 || p.posted[0].context != "gitbot-branch-check" {
		t.Errorf("unexpected posts: %+v", p.posted)
	}
}

func TestReconcileBranchIdempotent(t *testing.T) {
	p := newFakePlatform()
	r := status.New(p)
	if err := r.ReconcileBranch(context.Background(), "acme", "widget", "headsha"); err != nil {
		t.Fatalf("first ReconcileBranch() error: %v", err)
	}
	if err := r.ReconcileBranch(context.Background(), "acme", "widget", "headsha"); err != nil {
		t.Fatalf("second ReconcileBranch() error: %v", err)
	}
	if len(p.posted) != 1 {
		t.Errorf("expected exactly 1 post across two reconciles, got %d", len(p.posted))
	}
}
