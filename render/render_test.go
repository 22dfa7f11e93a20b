package render_test

import (
	"strings"
	"testing"

	"github.com/guyincognito/gitbot/render"
)

func TestDiffEmptyProducesStubPage(t *testing.T) {
	r := render.NewTextRenderer()
	out, err := r.Diff("", "rebase-0 vs rebase-1")
	if err != nil {
		t.Fatalf("Diff() error: %v", err)
	}
	if !strings.Contains(out, "No code changed in rebase") {
		t.Errorf("expected stub page text, got: %s", out)
	}
}

func TestSideBySideEmptyProducesStubPage(t *testing.T) {
	r := render.NewTextRenderer()
	out, err := r.SideBySide("", "rebase-0 vs rebase-1")
	if err != nil {
		t.Fatalf("SideBySide() error: %v", err)
	}
	if !strings.Contains(out, "No code changed in rebase") {
		t.Errorf("expected stub page text, got: %s", out)
	}
}

const sampleDiff = `diff --git a/a.txt b/a.txt
index e69de29..4b6f4f5 100644
--- a/a.txt
+++ b/a.txt
@@ -1 +1,2 @@
 line one
+line two
`

func TestDiffRendersTitle(t *testing.T) {
	r := render.NewTextRenderer()
	out, err := r.Diff(sampleDiff, "rebase-0 vs rebase-1")
	if err != nil {
		t.Fatalf("Diff() error: %v", err)
	}
	if !strings.Contains(out, "rebase-0 vs rebase-1") {
		t.Errorf("expected title in output, got: %s", out)
	}
}
