package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager hands out per-agent memories under a shared workspace root.
// Instances are cached per agent ID so that concurrent tasks routed to the
// same agent share one write lock, serializing file mutations.
type Manager struct {
	mu   sync.Mutex
	root string
	mems map[string]*Memory
}

// NewManager creates a workspace manager rooted at the given directory.
// The directory is created lazily on first agent use.
func NewManager(root string) *Manager {
	return &Manager{
		root: root,
		mems: make(map[string]*Memory),
	}
}

// Root returns the workspace root directory.
func (m *Manager) Root() string {
	return m.root
}

// MemoryFor returns the memory for an agent, creating its directory tree
// and session file on first use.
func (m *Manager) MemoryFor(agentID string) (*Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mem, ok := m.mems[agentID]; ok {
		return mem, nil
	}

	dir := filepath.Join(m.root, sanitizeName(agentID))
	if err := os.MkdirAll(filepath.Join(dir, "results"), 0755); err != nil {
		return nil, fmt.Errorf("creating agent workspace %s: %w", dir, err)
	}

	mem, err := openMemory(dir, agentID)
	if err != nil {
		return nil, err
	}

	m.mems[agentID] = mem
	return mem, nil
}

// sanitizeName maps an agent ID to a filesystem-safe directory name.
// "agent:researcher:main" becomes "agent_researcher_main".
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
