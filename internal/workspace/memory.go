package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Session is the durable identity record of an agent's workspace.
type Session struct {
	AgentID       string    `json:"agent_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastActive    time.Time `json:"last_active"`
	TasksRecorded int       `json:"tasks_recorded"`
}

// Memory records one agent's working state on disk: session.json for
// identity, an append-only context.md log, and results/ holding one JSON
// payload per recorded task. All writes go through the memory's lock.
type Memory struct {
	mu      sync.Mutex
	dir     string
	agentID string
	session Session
}

// openMemory loads an existing session or creates a fresh one.
func openMemory(dir, agentID string) (*Memory, error) {
	mem := &Memory{dir: dir, agentID: agentID}

	path := mem.sessionPath()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &mem.session); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		now := time.Now()
		mem.session = Session{AgentID: agentID, CreatedAt: now, LastActive: now}
		if err := mem.writeSession(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return mem, nil
}

// Dir returns the agent's workspace directory.
func (m *Memory) Dir() string {
	return m.dir
}

// Session returns a copy of the current session record.
func (m *Memory) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// AppendContext appends a timestamped markdown entry to the agent's
// context log and refreshes the session's last-active stamp.
func (m *Memory) AppendContext(note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := os.OpenFile(m.contextPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening context log: %w", err)
	}
	defer f.Close()

	entry := fmt.Sprintf("## %s\n\n%s\n\n", time.Now().Format(time.RFC3339), note)
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("appending context entry: %w", err)
	}

	return m.touchSession(0)
}

// SaveResult writes a task's result payload to results/result_<taskID>.json
// and bumps the session's recorded-task counter.
func (m *Memory) SaveResult(taskID string, result map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result for task %s: %w", taskID, err)
	}

	path := filepath.Join(m.dir, "results", fmt.Sprintf("result_%s.json", sanitizeName(taskID)))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing result for task %s: %w", taskID, err)
	}

	return m.touchSession(1)
}

// LoadResult reads back a previously saved task result.
func (m *Memory) LoadResult(taskID string) (map[string]any, error) {
	path := filepath.Join(m.dir, "results", fmt.Sprintf("result_%s.json", sanitizeName(taskID)))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result for task %s: %w", taskID, err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing result for task %s: %w", taskID, err)
	}
	return result, nil
}

// touchSession updates activity stamps and persists the session record.
// Caller must hold the lock.
func (m *Memory) touchSession(recorded int) error {
	m.session.LastActive = time.Now()
	m.session.TasksRecorded += recorded
	return m.writeSession()
}

// writeSession persists session.json. Caller must hold the lock (or be the
// constructor, before the memory is shared).
func (m *Memory) writeSession() error {
	data, err := json.MarshalIndent(m.session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := os.WriteFile(m.sessionPath(), data, 0644); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

func (m *Memory) sessionPath() string {
	return filepath.Join(m.dir, "session.json")
}

func (m *Memory) contextPath() string {
	return filepath.Join(m.dir, "context.md")
}
