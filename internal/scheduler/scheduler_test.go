package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEveryRunsJob(t *testing.T) {
	s, err := New(zap.NewNop())
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, s.Every(CheckpointJob, 20*time.Millisecond, func() { runs.Add(1) }))
	assert.Equal(t, []string{CheckpointJob}, s.Jobs())

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Shutdown())
}

func TestEveryRejectsBadInput(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	defer func() { _ = s.Shutdown() }()

	assert.Error(t, s.Every("", time.Second, func() {}))
	assert.Error(t, s.Every("zero", 0, func() {}))
	assert.Error(t, s.Every("nil", time.Second, nil))
	assert.Empty(t, s.Jobs())
}
