package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const backupPrefix = "journal_"

// Backup writes a consistent copy of the journal into dir and returns its
// path. VACUUM INTO is used instead of a file copy so WAL content is
// included.
func (s *Store) Backup(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	name := fmt.Sprintf("%s%s.db", backupPrefix, time.Now().Format("20060102_150405.000"))
	path := filepath.Join(dir, name)

	if _, err := s.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return "", fmt.Errorf("backup journal: %w", err)
	}
	s.logger.Info().Str("path", path).Msg("Journal backup completed")
	return path, nil
}

// CleanupBackups removes journal backups in dir older than retention and
// returns how many were deleted.
func (s *Store) CleanupBackups(dir string, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-retention)
	removed := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), backupPrefix) {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, file.Name())); err != nil {
				s.logger.Warn().Err(err).Str("file", file.Name()).Msg("Failed to delete old backup")
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// RunBackups backs up immediately and then every interval until ctx is done.
func (s *Store) RunBackups(ctx context.Context, dir string, interval, retention time.Duration) {
	s.logger.Info().Dur("interval", interval).Str("dir", dir).Msg("Backup loop started")

	run := func() {
		if _, err := s.Backup(ctx, dir); err != nil {
			s.logger.Error().Err(err).Msg("Journal backup failed")
		}
		if n, err := s.CleanupBackups(dir, retention); err != nil {
			s.logger.Error().Err(err).Msg("Backup cleanup failed")
		} else if n > 0 {
			s.logger.Info().Int("removed", n).Msg("Old backups deleted")
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
