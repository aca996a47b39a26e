package proctor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// SessionSnapshot is the durable slice of session state: warning count
// and the violation trail, evidence excluded. Frames live only in memory
// and on the backend.
type SessionSnapshot struct {
	ExamID     string            `json:"exam_id"`
	StudentID  int               `json:"student_id"`
	StartedAt  time.Time         `json:"started_at"`
	Warnings   int               `json:"warnings"`
	Violations []ViolationRecord `json:"violations"`
}

// Store persists session snapshots to a single JSON file so a client
// restart mid-exam does not reset the warning count.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save writes the session's current snapshot. The write goes through a
// temp file and rename so a crash never leaves a half-written snapshot.
func (st *Store) Save(s *Session) error {
	s.mu.Lock()
	snap := SessionSnapshot{
		ExamID:     s.cfg.ExamID,
		StudentID:  s.cfg.StudentID,
		StartedAt:  s.startedAt,
		Warnings:   s.warnings,
		Violations: append([]ViolationRecord(nil), s.violations...),
	}
	s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	tmp := st.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, st.path)
}

// Load reads the last saved snapshot. A missing file returns a zero
// snapshot and no error.
func (st *Store) Load() (SessionSnapshot, error) {
	var snap SessionSnapshot
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return snap, nil
		}
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// Clear removes the snapshot file after a successful submission.
func (st *Store) Clear() error {
	err := os.Remove(st.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
