package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoly/internal/config"
	"chronoly/internal/log"
)

func TestMigrateUpAndDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chronoly.db")

	v, err := Migrate(log.Discard(), path, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	v, err = Migrate(log.Discard(), path, true)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestOpenBackend_Memory(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataBackend = config.BackendMemory

	res, bcfg, err := OpenBackend(context.Background(), log.Discard(), cfg)
	require.NoError(t, err)
	defer res.Cleanup()

	assert.EqualValues(t, "memory", bcfg.Type)
	assert.Nil(t, res.Publisher)
	assert.NoError(t, res.Store.Ping(context.Background()))
}

func TestWaitForShutdown(t *testing.T) {
	// The signal goroutine only returns on a signal, so exercise WaitForShutdown directly.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cancel()
		close(done)
	}()

	finished := make(chan struct{})
	go func() {
		WaitForShutdown(ctx, done)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("WaitForShutdown did not return")
	}
}
