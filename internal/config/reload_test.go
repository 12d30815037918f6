// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_ReloadAppliesValidConfig(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, baseYAML)
	loader := NewLoader(path, "1.0.0")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader)
	updates := make(chan AppConfig, 1)
	h.Subscribe(updates)

	require.NoError(t, os.WriteFile(path, []byte(baseYAML+"logLevel: debug\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, "debug", h.Get().LogLevel)
	select {
	case cfg := <-updates:
		assert.Equal(t, "debug", cfg.LogLevel)
	default:
		t.Fatal("listener was not notified")
	}
}

func TestHolder_ReloadKeepsOldConfigOnError(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, baseYAML)
	loader := NewLoader(path, "1.0.0")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader)
	require.NoError(t, os.WriteFile(path, []byte(baseYAML+"unknownKey: 1\n"), 0o600))

	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, initial, h.Get())
}

func TestHolder_WatchWithoutFileReturns(t *testing.T) {
	h := NewHolder(AppConfig{}, NewLoader("", "1.0.0"))
	require.NoError(t, h.Watch(context.Background()))
}

func TestHolder_WatchReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, baseYAML)
	loader := NewLoader(path, "1.0.0")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader)
	updates := make(chan AppConfig, 4)
	h.Subscribe(updates)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()

	// Each write waits out the reload debounce before the next one so a
	// write that lands before the watcher is registered is retried.
	body := []byte(strings.Replace(baseYAML, "uploadBatchSize: 5", "uploadBatchSize: 7", 1))
	var got *AppConfig
	for attempt := 0; attempt < 6 && got == nil; attempt++ {
		require.NoError(t, os.WriteFile(path, body, 0o600))
		select {
		case cfg := <-updates:
			got = &cfg
		case <-time.After(3 * reloadDebounce):
		}
	}
	require.NotNil(t, got, "watcher never reloaded the config")
	assert.Equal(t, 7, got.Launch.UploadBatchSize)

	cancel()
	require.NoError(t, <-done)
}
