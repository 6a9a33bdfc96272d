package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"leihlokal/internal/config"

	"github.com/rs/zerolog"
)

const (
	backupPrefix = "leihlokal_"
	backupSuffix = ".db"
	backupStamp  = "20060102_150405"
)

// BackupService writes periodic snapshots of the SQLite store.
type BackupService struct {
	db     *DB
	config config.BackupConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		db:     db,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *BackupService) interval() time.Duration {
	if s.config.Schedule == "" {
		return 24 * time.Hour
	}
	d, err := time.ParseDuration(s.config.Schedule)
	if err != nil || d <= 0 {
		s.logger.Warn().Err(err).Str("schedule", s.config.Schedule).Msg("Failed to parse backup schedule, using default 24h")
		return 24 * time.Hour
	}
	return d
}

// Start takes a snapshot right away and then every interval until ctx is done.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return
	}

	every := s.interval()
	s.logger.Info().Dur("every", every).Msg("Backup service started")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if _, err := s.Backup(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Backup failed")
		}
		if _, err := s.Prune(); err != nil {
			s.logger.Error().Err(err).Msg("Backup cleanup failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Backup writes a consistent copy through the live connection and returns its path.
func (s *BackupService) Backup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	path := filepath.Join(s.config.StoragePath, backupPrefix+s.now().Format(backupStamp)+backupSuffix)
	// VACUUM INTO не блокирует писателей и не копирует WAL-мусор
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", path, err)
	}

	s.logger.Info().Str("path", path).Msg("Backup completed")
	return path, nil
}

// Prune deletes snapshots older than the retention window. Age is taken from
// the timestamp in the file name; foreign files are never touched.
func (s *BackupService) Prune() ([]string, error) {
	if s.config.RetentionDays <= 0 {
		return nil, nil
	}

	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	var removed []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
		taken, err := time.ParseInLocation(backupStamp, stamp, s.now().Location())
		if err != nil || !taken.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.StoragePath, name)); err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("Failed to delete old backup")
			continue
		}
		s.logger.Info().Str("file", name).Msg("Deleted old backup")
		removed = append(removed, name)
	}
	return removed, nil
}
