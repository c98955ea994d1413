// Package templates renders the HTML fragments patched into the viewer
// over Datastar SSE.
package templates

import (
	"bytes"
	"html/template"
	"path/filepath"
	"sync"
)

// dict builds a map inline so fragments can pass several values to a
// nested template.
var funcMap = template.FuncMap{
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
}

// Renderer manages the viewer's HTML fragment templates.
type Renderer struct {
	mu        sync.RWMutex
	templates *template.Template
}

// New loads every *.html fragment under fragmentsDir.
func New(fragmentsDir string) (*Renderer, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseGlob(filepath.Join(fragmentsDir, "*.html"))
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// Render renders a named fragment to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named fragment into buf.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(buf, name, data)
}

// Reload re-parses the fragments from disk (dev hot-reload).
func (r *Renderer) Reload(fragmentsDir string) error {
	tmpl, err := template.New("").Funcs(funcMap).ParseGlob(filepath.Join(fragmentsDir, "*.html"))
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()
	return nil
}
