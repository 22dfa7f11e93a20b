package render_test

import (
	"context"
	"strings"
	"testing"

	"github.com/guyincognito/gitbot/render"
)

func TestRenderPreEscapesAndTitles(t *testing.T) {
	out, err := render.RenderPre("Commit Log Diff", "line one\n<script>bad</script>\n")
	if err != nil {
		t.Fatalf("RenderPre() error: %v", err)
	}
	if !strings.Contains(out, "Commit Log Diff") {
		t.Errorf("expected title in output, got: %s", out)
	}
	if strings.Contains(out, "<script>bad</script>") {
		t.Errorf("expected content to be escaped, got: %s", out)
	}
}

func TestRenderColumnsIncludesEachHeader(t *testing.T) {
	out, err := render.RenderColumns("Rebase Series Diff", []render.Column{
		{Header: "rebase-base/0", Text: "a"},
		{Header: "rebase-base/1", Text: "b"},
	})
	if err != nil {
		t.Fatalf("RenderColumns() error: %v", err)
	}
	if !strings.Contains(out, "rebase-base/0") || !strings.Contains(out, "rebase-base/1") {
		t.Errorf("expected both headers in output, got: %s", out)
	}
}

func TestDiffTextIdenticalInputsIsEmpty(t *testing.T) {
	out, err := render.DiffText(context.Background(), "same\n", "same\n", "a", "b")
	if err != nil {
		t.Fatalf("DiffText() error: %v", err)
	}
	if out != "" {
		t.Errorf("DiffText() = %q for identical inputs, want empty", out)
	}
}

func TestDiffTextDifferingInputsProducesUnifiedDiff(t *testing.T) {
	out, err := render.DiffText(context.Background(), "one\n", "two\n", "rebase-start/0", "rebase-end/1")
	if err != nil {
		t.Fatalf("DiffText() error: %v", err)
	}
	if !strings.Contains(out, "rebase-start/0") || !strings.Contains(out, "rebase-end/1") {
		t.Errorf("expected labels in diff output, got: %s", out)
	}
	if !strings.Contains(out, "-one") || !strings.Contains(out, "+two") {
		t.Errorf("expected unified diff body, got: %s", out)
	}
}
