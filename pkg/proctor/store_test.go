package proctor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	store := NewStore(path)

	s := NewSession(SessionConfig{
		ExamID:    "exam-1",
		StudentID: 4,
		Capturer:  NewCachedCapturer(&fakeCapturer{webcam: Frame("jpeg")}),
	}, nil)
	require.NoError(t, s.Start(newFakeEnv()))

	s.RecordViolation(TabSwitch, s.Snapshot())
	s.RecordViolation(FocusLost, s.Snapshot())
	require.NoError(t, store.Save(s))

	snap, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, "exam-1", snap.ExamID)
	assert.Equal(t, 4, snap.StudentID)
	assert.Equal(t, 2, snap.Warnings)
	require.Len(t, snap.Violations, 2)
	assert.Equal(t, TabSwitch, snap.Violations[0].Type)
	assert.Equal(t, FocusLost, snap.Violations[1].Type)
	assert.True(t, snap.StartedAt.Equal(s.StartedAt()))

	want := s.Violations()
	for i := range want {
		assert.True(t, snap.Violations[i].Timestamp.Equal(want[i].Timestamp))
	}
}

func TestStoreStripsEvidence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(path)

	s := NewSession(SessionConfig{
		ExamID:   "exam-1",
		Capturer: NewCachedCapturer(&fakeCapturer{webcam: Frame("webcam-bytes"), screen: Frame("screen-bytes")}),
	}, nil)
	require.NoError(t, s.Start(newFakeEnv()))
	s.RecordViolation(MultipleFaces, s.Snapshot())
	require.NoError(t, store.Save(s))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "webcam-bytes")
	assert.NotContains(t, string(raw), "screen-bytes")

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))

	snap, err := store.Load()
	require.NoError(t, err)
	require.Len(t, snap.Violations, 1)
	assert.Empty(t, snap.Violations[0].Evidence.Webcam)
}

func TestStoreMissingFileIsZeroSnapshot(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.json"))

	snap, err := store.Load()
	require.NoError(t, err)
	assert.Zero(t, snap.Warnings)
	assert.Empty(t, snap.Violations)

	require.NoError(t, store.Clear())
}

func TestStoreClearAfterSubmit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(path)

	s := NewSession(SessionConfig{ExamID: "exam-1"}, nil)
	require.NoError(t, s.Start(newFakeEnv()))
	require.NoError(t, store.Save(s))
	require.NoError(t, s.Submit(ReasonManual))

	require.NoError(t, store.Clear())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreFromStoredSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(path)

	first := NewSession(SessionConfig{ExamID: "exam-1", StudentID: 2}, nil)
	require.NoError(t, first.Start(newFakeEnv()))
	first.RecordViolation(TabSwitch, Evidence{})
	require.NoError(t, store.Save(first))

	snap, err := store.Load()
	require.NoError(t, err)

	second := NewSession(SessionConfig{ExamID: "exam-1", StudentID: 2, MaxWarnings: 2}, nil)
	require.NoError(t, second.Restore(snap))
	require.NoError(t, second.Start(newFakeEnv()))

	assert.Equal(t, 1, second.Warnings())
	second.RecordViolation(FocusLost, Evidence{})
	assert.Equal(t, StateSubmitted, second.State())
}
