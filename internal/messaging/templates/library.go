// Package templates parses named text templates with strict missing-key semantics.
package templates

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
)

// Library holds named templates parsed once and reused for every message.
type Library struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewLibrary parses every template in texts, failing on the first invalid one.
func NewLibrary(texts map[string]string) (*Library, error) {
	lib := &Library{templates: make(map[string]*template.Template, len(texts))}
	for name, text := range texts {
		if err := lib.Add(name, text); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

// MustLibrary is NewLibrary for package-level built-in templates.
func MustLibrary(texts map[string]string) *Library {
	lib, err := NewLibrary(texts)
	if err != nil {
		panic(err)
	}
	return lib
}

// Add parses and registers (or replaces) a template.
func (l *Library) Add(name, text string) error {
	if text == "" {
		return fmt.Errorf("templates: template %q text required", name)
	}
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return fmt.Errorf("templates: parse %q: %w", name, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[name] = t
	return nil
}

// Render executes the named template.
func (l *Library) Render(name string, data any) (string, error) {
	l.mu.RLock()
	t, ok := l.templates[name]
	l.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("templates: unknown template %q", name)
	}
	return execute(t, data)
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute: %w", err)
	}
	return buf.String(), nil
}
