package token

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore_SetGetClear(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sub", "token")
	s := New(path, nil)

	_, ok := s.Get()
	require.False(t, ok, "empty store must report no token")

	require.NoError(t, s.Set("abc.def.ghi"))
	tok, ok := s.Get()
	require.True(t, ok)
	require.Equal(t, "abc.def.ghi", tok)

	// File must be private to the user.
	fi, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	require.NoError(t, s.Clear())
	_, ok = s.Get()
	require.False(t, ok)

	// Clearing twice is not an error.
	require.NoError(t, s.Clear())
}

func TestStore_SubscribeOnLocalMutation(t *testing.T) {
	t.Parallel()
	s := New(filepath.Join(t.TempDir(), "token"), nil)

	var calls atomic.Int32
	s.Subscribe(func() { calls.Add(1) })

	require.NoError(t, s.Set("tok"))
	require.NoError(t, s.Clear())
	require.Equal(t, int32(2), calls.Load())
}

func TestStore_WatchSeesExternalWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	s := New(path, nil)

	notified := make(chan struct{}, 4)
	s.Subscribe(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	// Simulate another process writing the token file directly.
	require.NoError(t, os.WriteFile(path, []byte("external-token"), 0o600))

	select {
	case <-notified:
	case <-time.After(3 * time.Second):
		t.Fatal("external write was not observed")
	}

	tok, ok := s.Get()
	require.True(t, ok)
	require.Equal(t, "external-token", tok)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestStore_WatchIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "token"), nil)

	notified := make(chan struct{}, 4)
	s.Subscribe(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0o600))

	select {
	case <-notified:
		t.Fatal("unrelated file triggered a notification")
	case <-time.After(500 * time.Millisecond):
	}
}
