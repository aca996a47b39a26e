package service

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentra-edu/proctor-backend/internal/config"
)

func newEvidenceService(t *testing.T, maxBytes int64) *EvidenceService {
	t.Helper()
	return NewEvidenceService(&config.Config{
		EvidenceDir:      t.TempDir(),
		MaxEvidenceBytes: maxBytes,
	})
}

func TestEvidenceStoreWritesFrame(t *testing.T) {
	svc := newEvidenceService(t, 1<<20)
	frame := []byte("jpeg-bytes-here")
	encoded := base64.StdEncoding.EncodeToString(frame)

	rel, err := svc.Store("exam-1", 42, "webcam", encoded)
	require.NoError(t, err)
	require.NotNil(t, rel)

	assert.True(t, strings.HasPrefix(*rel, filepath.Join("exam-1", "42")))
	assert.True(t, strings.HasSuffix(*rel, "_webcam.jpg"))

	data, err := os.ReadFile(filepath.Join(svc.Root(), *rel))
	require.NoError(t, err)
	assert.Equal(t, frame, data)
}

func TestEvidenceStoreStripsDataURL(t *testing.T) {
	svc := newEvidenceService(t, 1<<20)
	frame := []byte{0xFF, 0xD8, 0xFF}
	encoded := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame)

	rel, err := svc.Store("exam-1", 7, "screen", encoded)
	require.NoError(t, err)
	require.NotNil(t, rel)

	data, err := os.ReadFile(filepath.Join(svc.Root(), *rel))
	require.NoError(t, err)
	assert.Equal(t, frame, data)
}

func TestEvidenceStoreEmptyInputIsNoop(t *testing.T) {
	svc := newEvidenceService(t, 1<<20)

	rel, err := svc.Store("exam-1", 7, "webcam", "")
	require.NoError(t, err)
	assert.Nil(t, rel)
}

func TestEvidenceStoreRejectsOversizedFrame(t *testing.T) {
	svc := newEvidenceService(t, 8)
	encoded := base64.StdEncoding.EncodeToString(make([]byte, 64))

	_, err := svc.Store("exam-1", 7, "webcam", encoded)
	assert.ErrorIs(t, err, ErrEvidenceTooLarge)
}

func TestEvidenceStoreQuietSwallowsBadInput(t *testing.T) {
	svc := newEvidenceService(t, 1<<20)

	assert.Nil(t, svc.StoreQuiet("exam-1", 7, "webcam", "not-base64!!!"))
}
