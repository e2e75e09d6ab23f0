package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	decayInterval       = time.Hour
	uploadCleanInterval = 6 * time.Hour
	uploadMaxAge        = 24 * time.Hour
)

// DecayRunner is the single method the memory subsystem's hourly sweep
// needs; satisfied by *memory.DecayManager.
type DecayRunner interface {
	RunHourly()
}

// RunDecayTimer fires RunHourly every decayInterval until ctx is
// cancelled.
func RunDecayTimer(ctx context.Context, d DecayRunner) {
	ticker := time.NewTicker(decayInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.RunHourly()
		}
	}
}

// RunUploadCleanupTimer deletes files older than uploadMaxAge under
// uploadsDir every uploadCleanInterval until ctx is cancelled.
func RunUploadCleanupTimer(ctx context.Context, uploadsDir string, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	ticker := time.NewTicker(uploadCleanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanUploads(uploadsDir, time.Now(), log)
		}
	}
}

func cleanUploads(uploadsDir string, now time.Time, log *slog.Logger) {
	entries, err := os.ReadDir(uploadsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("upload cleanup: reading directory failed", "dir", uploadsDir, "error", err)
		}
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > uploadMaxAge {
			path := filepath.Join(uploadsDir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Warn("upload cleanup: removing file failed", "path", path, "error", err)
			}
		}
	}
}
