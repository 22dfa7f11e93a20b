package classify_test

import (
	"errors"
	"testing"

	"github.com/guyincognito/gitbot/classify"
)

func TestPushFastForward(t *testing.T) {
	isAncestor := func(a, b string) (bool, error) { return true, nil }
	kind, err := classify.Push("before", "after", isAncestor)
	if err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	if kind != classify.FastForward {
		t.Errorf("Push() = %v, want FastForward", kind)
	}
}

func TestPushRewrite(t *testing.T) {
	isAncestor := func(a, b string) (bool, error) { return false, nil }
	kind, err := classify.Push("before", "after", isAncestor)
	if err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	if kind != classify.Rewrite {
		t.Errorf("Push() = %v, want Rewrite", kind)
	}
}

func TestPushPropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	isAncestor := func(a, b string) (bool, error) { return false, wantErr }
	if _, err := classify.Push("before", "after", isAncestor); err != wantErr {
		t.Errorf("Push() error = %v, want %v", err, wantErr)
	}
}

func TestPushDualityAgainstAncestorCall(t *testing.T) {
	var gotA, gotB string
	isAncestor := func(a, b string) (bool, error) {
		gotA, gotB = a, b
		return true, nil
	}
	if _, err := classify.Push("sha-before", "sha-after", isAncestor); err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	if gotA != "sha-before" || gotB != "sha-after" {
		t.Errorf("isAncestor called with (%q, %q), want (\"sha-before\", \"sha-after\")", gotA, gotB)
	}
}
