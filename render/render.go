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

// Package render turns unified diff text into HTML, replacing the
// external vim-TOhtml-plus-BeautifulSoup pipeline with a pure Go
// implementation behind a swappable Renderer interface.
package render

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/waigani/diffparser"
	"golang.org/x/net/html"
)

// Renderer is the external collaborator interface for diff rendering:
// a pure strings -> HTML function, so the implementation can be replaced
// without touching the core.
type Renderer interface {
	// Diff renders a unified diff as an HTML page titled title.
	Diff(diffText, title string) (string, error)
	// SideBySide renders a unified diff as a side-by-side HTML table.
	SideBySide(diffText, title string) (string, error)
}

// TextRenderer is the default Renderer, backed by diffparser for
// structural hunk parsing and golang.org/x/net/html for the title/header
// post-processing step the original BeautifulSoup pass performed.
type TextRenderer struct{}

// NewTextRenderer constructs the default renderer.
func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

const emptyDiffPage = `<html><head><title>%s</title></head><body><p>No code changed in rebase.</p></body></html>`

var unifiedTemplate = template.Must(template.New("diff").Parse(`<html>
<head><title>{{.Title}}</title></head>
<body>
{{range .Files}}
<h3>{{.Name}}</h3>
<table class="diff-file">
{{range .Lines}}<tr class="{{.Class}}"><td class="lineno">{{.OldLine}}</td><td class="lineno">{{.NewLine}}</td><td class="code">{{.Text}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>`))

var sideBySideTemplate = template.Must(template.New("diff-sxs").Parse(`<html>
<head><title>{{.Title}}</title></head>
<body>
{{range .Files}}
<h3>{{.Name}}</h3>
<table class="diff-file-side-by-side">
<tr><th>old</th><th>new</th></tr>
{{range .Pairs}}<tr><td class="{{.OldClass}}">{{.OldText}}</td><td class="{{.NewClass}}">{{.NewText}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>`))

type templateLine struct {
	Class            string
	OldLine, NewLine string
	Text             string
}

type templateFile struct {
	Name  string
	Lines []templateLine
}

type templateData struct {
	Title string
	Files []templateFile
}

func (r *TextRenderer) Diff(diffText, title string) (string, error) {
	if strings.TrimSpace(diffText) == "" {
		return fitTitle(emptyDiffPage, title), nil
	}
	diff, err := diffparser.Parse(diffText)
	if err != nil {
		return "", err
	}
	data := templateData{Title: title}
	for _, f := range diff.Files {
		tf := templateFile{Name: fileLabel(f)}
		for _, h := range f.Hunks {
			for _, l := range h.WholeRange.Lines {
				tf.Lines = append(tf.Lines, templateLine{
					Class: diffLineClass(l.Mode),
					Text:  l.Content,
				})
			}
		}
		data.Files = append(data.Files, tf)
	}
	var buf bytes.Buffer
	if err := unifiedTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return postProcess(buf.String(), title)
}

func (r *TextRenderer) SideBySide(diffText, title string) (string, error) {
	if strings.TrimSpace(diffText) == "" {
		return fitTitle(emptyDiffPage, title), nil
	}
	diff, err := diffparser.Parse(diffText)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	data := struct {
		Title string
		Files []struct {
			Name  string
			Pairs []struct {
				OldClass, NewClass string
				OldText, NewText   string
			}
		}
	}{Title: title}
	for _, f := range diff.Files {
		entry := struct {
			Name  string
			Pairs []struct {
				OldClass, NewClass string
				OldText, NewText   string
			}
		}{Name: fileLabel(f)}
		for _, h := range f.Hunks {
			for _, l := range h.WholeRange.Lines {
				pair := struct {
					OldClass, NewClass string
					OldText, NewText   string
				}{}
				switch l.Mode {
				case diffparser.ADDED:
					pair.NewClass, pair.NewText = "added", l.Content
				case diffparser.REMOVED:
					pair.OldClass, pair.OldText = "removed", l.Content
				default:
					pair.OldText, pair.NewText = l.Content, l.Content
				}
				entry.Pairs = append(entry.Pairs, pair)
			}
		}
		data.Files = append(data.Files, entry)
	}
	if err := sideBySideTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return postProcess(buf.String(), title)
}

func fileLabel(f *diffparser.DiffFile) string {
	if f.NewName != "" {
		return f.NewName
	}
	return f.OrigName
}

func diffLineClass(mode diffparser.DiffLineMode) string {
	switch mode {
	case diffparser.ADDED:
		return "added"
	case diffparser.REMOVED:
		return "removed"
	default:
		return "unchanged"
	}
}

func fitTitle(page, title string) string {
	return strings.Replace(page, "%s", title, 1)
}

// postProcess rewrites the page title and table headers, the same
// responsibility the original pipeline's BeautifulSoup pass had, using
// golang.org/x/net/html instead of a Python DOM library.
func postProcess(rendered, title string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rendered))
	if err != nil {
		return "", err
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			n.FirstChild.Data = title
		}
		if n.Type == html.ElementNode && n.Data == "th" && n.FirstChild != nil {
			n.FirstChild.Data = strings.Title(n.FirstChild.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
