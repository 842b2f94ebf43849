package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"linenotes/internal/config"
	"linenotes/internal/persist"
	"linenotes/internal/service"
)

// openService opens and initializes the project named by cfg.
func openService(cfg *config.Config, logger *slog.Logger) (*service.Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	if cfg.ProjectRoot == "" {
		return nil, fmt.Errorf("project root is required")
	}
	svc, err := service.New(service.Options{
		ProjectRoot:    cfg.ProjectRoot,
		NotesDir:       cfg.NotesDir,
		Backend:        cfg.Backend,
		RenameFallback: cfg.RenameFallback,
		Identity:       cfg.Identity,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	if err := svc.Init(); err != nil {
		_ = svc.Dispose()
		return nil, err
	}
	return svc, nil
}

// notesDir resolves the directory holding persisted state the same way the
// service does.
func notesDir(cfg *config.Config) string {
	dir := strings.TrimSpace(cfg.NotesDir)
	switch {
	case dir == "":
		return filepath.Join(cfg.ProjectRoot, persist.DefaultDirName)
	case filepath.IsAbs(dir):
		return dir
	default:
		return filepath.Join(cfg.ProjectRoot, dir)
	}
}
