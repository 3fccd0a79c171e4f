package store

import (
	"context"
	"fmt"

	"github.com/Varietyz/banes-lab-bot/internal/models"
)

// InsertReport persists one parsed disk report.
func (s *Store) InsertReport(ctx context.Context, report models.DiskReport) error {
	if err := s.db.WithContext(ctx).Create(&report).Error; err != nil {
		return fmt.Errorf("insert disk report: %w", err)
	}
	return nil
}

// LatestReports returns the newest reports first.
func (s *Store) LatestReports(ctx context.Context, limit int) ([]models.DiskReport, error) {
	var rows []models.DiskReport
	err := s.db.WithContext(ctx).Order("timestamp DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
