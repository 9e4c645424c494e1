package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"sync/atomic"
)

//go:embed default.tmpl
var defaultTemplate string

// Manager owns the active prompt template and supports atomic hot-swap on
// reload. Readers always observe a complete template, never a half-updated
// one.
type Manager struct {
	path    string
	current atomic.Pointer[Template]
}

// NewManager loads the initial template. When path is empty the embedded
// default template is used. A load failure here is a configuration error
// and the process should not start.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Current returns the active template.
func (m *Manager) Current() *Template {
	return m.current.Load()
}

// Reload re-reads the template source and swaps it in atomically. On error
// the previous template stays active.
func (m *Manager) Reload() error {
	text := defaultTemplate
	name := "default"

	if m.path != "" {
		raw, err := os.ReadFile(m.path)
		if err != nil {
			return fmt.Errorf("prompt: reading template %s: %w", m.path, err)
		}
		text = string(raw)
		name = m.path
	}

	tmpl, err := Parse(name, text)
	if err != nil {
		return err
	}
	m.current.Store(tmpl)
	return nil
}
