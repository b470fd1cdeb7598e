package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRunner builds a registry-only runner. Tests here exercise run tracking;
// the execute goroutine needs a live browser and never starts in this package.
func testRunner() *RunnerService {
	return &RunnerService{
		cfg:    testAutomationConfig(),
		runs:   make(map[string]*Run),
		active: make(map[int]string),
	}
}

func registerRun(s *RunnerService, id string, userID int, cancel context.CancelFunc) *Run {
	if cancel == nil {
		cancel = func() {}
	}
	run := &Run{
		ID:      id,
		UserID:  userID,
		cancel:  cancel,
		summary: RunSummary{RunID: id, Status: RunStatusRunning},
	}
	s.runs[id] = run
	s.active[userID] = id
	return run
}

func TestStartRejectsConcurrentRunForSameUser(t *testing.T) {
	s := testRunner()
	registerRun(s, "AAAA1111", 7, nil)

	_, err := s.Start(RunRequest{UserID: 7, Keywords: "golang"})
	assert.ErrorIs(t, err, ErrRunActive)
}

func TestGetIsOwnerScoped(t *testing.T) {
	s := testRunner()
	run := registerRun(s, "AAAA1111", 7, nil)
	run.update(func(sum *RunSummary) { sum.Discovered = 4 })

	got, err := s.Get("AAAA1111", 7)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Discovered)

	_, err = s.Get("AAAA1111", 8)
	assert.ErrorIs(t, err, ErrRunNotFound, "another user's run looks missing, not forbidden")

	_, err = s.Get("BBBB2222", 7)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestCancelStopsOwnRun(t *testing.T) {
	s := testRunner()
	canceled := 0
	registerRun(s, "AAAA1111", 7, func() { canceled++ })

	require.NoError(t, s.Cancel("AAAA1111", 7))
	assert.Equal(t, 1, canceled)

	got, err := s.Get("AAAA1111", 7)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCanceled, got.Status)

	assert.ErrorIs(t, s.Cancel("AAAA1111", 8), ErrRunNotFound)
}

func TestCancelDoesNotRelabelFinishedRun(t *testing.T) {
	s := testRunner()
	run := registerRun(s, "AAAA1111", 7, nil)
	run.update(func(sum *RunSummary) { sum.Status = RunStatusFinished })

	require.NoError(t, s.Cancel("AAAA1111", 7))

	got, err := s.Get("AAAA1111", 7)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFinished, got.Status)
}

func TestCancelAllStopsEveryActiveRun(t *testing.T) {
	s := testRunner()
	first, second := 0, 0
	registerRun(s, "AAAA1111", 7, func() { first++ })
	registerRun(s, "BBBB2222", 8, func() { second++ })

	s.CancelAll()

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)

	got, err := s.Get("AAAA1111", 7)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCanceled, got.Status)

	got, err = s.Get("BBBB2222", 8)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCanceled, got.Status)
}

func TestSnapshotReturnsACopy(t *testing.T) {
	run := &Run{summary: RunSummary{Discovered: 1}}

	snap := run.Snapshot()
	snap.Discovered = 99

	assert.Equal(t, 1, run.Snapshot().Discovered)
}

func TestNewRunID(t *testing.T) {
	id := newRunID()
	assert.Regexp(t, "^[0-9A-F]{8}$", id)
	assert.NotEqual(t, id, newRunID())
}

func TestSplitKeywords(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"golang, backend, sre", []string{"golang", "backend", "sre"}},
		{"  golang ,  backend  ", []string{"golang", "backend"}},
		{"golang backend", []string{"golang backend"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitKeywords(tt.raw), "raw=%q", tt.raw)
	}

	assert.Empty(t, splitKeywords(""))
}
