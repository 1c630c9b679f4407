package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRunFeedbackExitCodes establishes the device session before the
// category gate: a missing input directory fails the run for every
// category, including the one that plays no pattern.
func TestRunFeedbackExitCodes(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone")
	for _, category := range []Category{CategoryNone, CategoryObstacle, CategoryMovement} {
		t.Run(category.String(), func(t *testing.T) {
			sess := newTestSession(t, missing)
			assert.Equal(t, 1, runFeedback(sess, category, 0))
		})
	}
}

func TestRunFeedbackNoDeviceFound(t *testing.T) {
	sess := newTestSession(t, t.TempDir())
	assert.Equal(t, 1, runFeedback(sess, CategoryObstacle, 0))
}

func TestRunListMissingDir(t *testing.T) {
	assert.Equal(t, 1, runList(filepath.Join(t.TempDir(), "gone")))
}

func TestRunListEmptyDir(t *testing.T) {
	assert.Equal(t, 0, runList(t.TempDir()))
}

// TestRunListSkipsUnusableNodes survives nodes that are not evdev devices.
func TestRunListSkipsUnusableNodes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "event0"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "js0"), nil, 0o644))
	assert.Equal(t, 0, runList(dir))
}
