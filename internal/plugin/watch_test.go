package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatcherDebouncesReplyFileChanges(t *testing.T) {
	dir := t.TempDir()
	fired := make(chan struct{}, 10)
	w := NewWatcher(dir, 50*time.Millisecond, func() { fired <- struct{}{} }, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	path := filepath.Join(dir, "hola.toml")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`command = "hola"`), 0600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0600))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload callback")
	}

	select {
	case <-fired:
		t.Fatal("burst of writes should produce a single callback")
	case <-time.After(200 * time.Millisecond):
	}
}
