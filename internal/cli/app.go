// Package cli implements the skillz-cli command surface: a thin cobra
// front end directly over the Runtime Facade, no control-plane daemon in
// between. Each command builds a runtime.Facade and calls it in-process.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Algiras/skillz/internal/config"
	"github.com/Algiras/skillz/internal/logging"
	"github.com/Algiras/skillz/internal/memory"
	"github.com/Algiras/skillz/internal/registry"
	"github.com/Algiras/skillz/internal/runtime"
	"github.com/Algiras/skillz/internal/wasmexec"
)

// appDir resolves the application's config/state directory.
func appDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "skillz"), nil
}

// buildFacade wires config, logging, the registry, the memory store, and
// the WASM executor into one Facade for a single command invocation.
func buildFacade(ctx context.Context) (*runtime.Facade, func(), error) {
	dir, err := appDir()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve app directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create app directory: %w", err)
	}
	if err := logging.Init(dir); err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}

	store := config.NewStore(filepath.Join(dir, "config.yaml"))
	settings, err := store.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logging.SetVerbose(settings.VerboseLogging)

	reg, err := registry.New(settings.ToolsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open registry: %w", err)
	}

	mem, err := memory.Open(settings.ToolsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open memory store: %w", err)
	}

	wasm, err := wasmexec.New(ctx, 0)
	if err != nil {
		mem.Close()
		return nil, nil, fmt.Errorf("init wasm executor: %w", err)
	}

	stop := make(chan struct{})
	mem.StartSweeper(10*time.Minute, stop)

	facade := runtime.New(reg, mem, settings, wasm)
	cleanup := func() {
		close(stop)
		wasm.Close(ctx)
		mem.Close()
		logging.Close()
	}
	return facade, cleanup, nil
}
