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

package render

import (
	"bytes"
	"context"
	"html/template"
	"os/exec"
)

var preTemplate = template.Must(template.New("pre").Parse(`<html><head><title>{{.Title}}</title></head><body><pre>{{.Text}}</pre></body></html>`))

// RenderPre wraps text as a single preformatted HTML page. Used for commit
// log views, which aren't unified-diff formatted text and so don't go
// through the structural Diff/SideBySide pipeline.
func RenderPre(title, text string) (string, error) {
	var buf bytes.Buffer
	if err := preTemplate.Execute(&buf, struct{ Title, Text string }{title, text}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Column is one labeled pane in a RenderColumns page.
type Column struct {
	Header string
	Text   string
}

var columnsTemplate = template.Must(template.New("columns").Parse(`<html><head><title>{{.Title}}</title></head><body><table>
<tr>{{range .Columns}}<th>{{.Header}}</th>{{end}}</tr>
<tr>{{range .Columns}}<td><pre>{{.Text}}</pre></td>{{end}}</tr>
</table></body></html>`))

// RenderColumns lays columns out side by side, each its own preformatted
// block, for the rebase series views.
func RenderColumns(title string, columns []Column) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Title   string
		Columns []Column
	}{title, columns}
	if err := columnsTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DiffText runs the system diff tool over a and b, labeling each side, and
// returns the unified diff text, or "" if they're identical. It shells out
// rather than reimplementing a text differ, the same way package git wraps
// the git binary instead of reimplementing its plumbing.
func DiffText(ctx context.Context, a, b, labelA, labelB string) (string, error) {
	fa, err := newScopedFile("gitbot-difftext")
	if err != nil {
		return "", err
	}
	defer fa.Close()
	if _, err := fa.Write([]byte(a)); err != nil {
		return "", err
	}

	fb, err := newScopedFile("gitbot-difftext")
	if err != nil {
		return "", err
	}
	defer fb.Close()
	if _, err := fb.Write([]byte(b)); err != nil {
		return "", err
	}

	out, err := exec.CommandContext(ctx, "diff", "-u", "--label", labelA, "--label", labelB, fa.Name(), fb.Name()).Output()
	if err != nil {
		// diff exits 1 when the inputs differ; that's the expected case,
		// not a failure.
		if ee, ok := err.(*exec.ExitError); ok && ee.ExitCode() == 1 {
			return string(out), nil
		}
		return "", err
	}
	return string(out), nil
}
