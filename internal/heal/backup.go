package heal

import (
	"fmt"
	"os"
	"time"
)

// backupFile snapshots a file next to the original before a write. The
// suffix keeps backups out of indexing and verification.
func backupFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("heal: stat before backup: %w", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("heal: read before backup: %w", err)
	}
	backup := fmt.Sprintf("%s.backup.%d", path, time.Now().Unix())
	if err := os.WriteFile(backup, content, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("heal: write backup: %w", err)
	}
	return backup, nil
}

// restoreFile puts the backed-up content back in place of the file.
// The backup itself is kept for audit.
func restoreFile(backup, path string) error {
	content, err := os.ReadFile(backup)
	if err != nil {
		return fmt.Errorf("heal: read backup: %w", err)
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		return fmt.Errorf("heal: restore from backup: %w", err)
	}
	return nil
}
