package comment_test

import (
	"strings"
	"testing"

	"github.com/guyincognito/gitbot/comment"
)

func TestComposePreamble(t *testing.T) {
	out := comment.Compose(comment.Input{
		URLRoot:                "https://gitbot.example.com",
		BranchName:             "acme/widget/PR/7/main",
		Sender:                 "alice",
		LatestRebaseBeforePush: 0,
	})
	wantPreamble := "Branch rebased 1 time(s), most recently by alice."
	if !strings.Contains(out, wantPreamble) {
		t.Errorf("comment missing preamble %q, got:\n%s", wantPreamble, out)
	}
}

func TestComposeNoSeriesBelowThreshold(t *testing.T) {
	// r+1 == 1 < 2: no series block at all.
	out := comment.Compose(comment.Input{
		URLRoot:                "https://gitbot.example.com",
		BranchName:             "acme/widget/PR/7/main",
		Sender:                 "alice",
		LatestRebaseBeforePush: 0,
	})
	if strings.Contains(out, "Series diff") {
		t.Error("expected no series diff block when r+1 < 2")
	}
}

func TestComposeThreeSnapshotSeriesWindow(t *testing.T) {
	// r+1 == 2: exactly three historical points {r-1, r, r+1} = {0, 1, 2}.
	out := comment.Compose(comment.Input{
		URLRoot:                "https://gitbot.example.com",
		BranchName:             "acme/widget/PR/7/main",
		Sender:                 "alice",
		LatestRebaseBeforePush: 1,
	})
	if !strings.Contains(out, "Series diff") {
		t.Fatal("expected a series diff block when r+1 == 2")
	}
	if !strings.Contains(out, "rebase_first=head-0") || !strings.Contains(out, "rebase_second=head-1") || !strings.Contains(out, "rebase_third=head-2") {
		t.Errorf("expected three-point window {0,1,2}, got:\n%s", out)
	}
	if strings.Contains(out, "rebase_fourth") {
		t.Errorf("expected no fourth point in a three-snapshot window, got:\n%s", out)
	}
}

func TestComposeFourSnapshotSeriesWindow(t *testing.T) {
	// r+1 >= 3: four historical points {r-2, r-1, r, r+1} = {0, 1, 2, 3}.
	out := comment.Compose(comment.Input{
		URLRoot:                "https://gitbot.example.com",
		BranchName:             "acme/widget/PR/7/main",
		Sender:                 "alice",
		LatestRebaseBeforePush: 2,
	})
	for _, want := range []string{"rebase_first=head-0", "rebase_second=head-1", "rebase_third=head-2", "rebase_fourth=head-3"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in four-point window, got:\n%s", want, out)
		}
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	in := comment.Input{
		URLRoot:                "https://gitbot.example.com",
		BranchName:             "acme/widget/PR/7/main",
		Sender:                 "alice",
		LatestRebaseBeforePush: 2,
	}
	a := comment.Compose(in)
	b := comment.Compose(in)
	if a != b {
		t.Error("Compose() is not deterministic for identical inputs")
	}
}
