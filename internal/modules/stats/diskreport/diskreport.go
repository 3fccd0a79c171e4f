// Package diskreport turns disk health reports posted to the report channel
// into stored rows and gauges.
package diskreport

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Varietyz/banes-lab-bot/internal/models"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/metrics"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/platform"
)

// Field labels, matched as substrings of embed field names.
const (
	LabelTemperature    = "Temperature"
	LabelPowerOnHours   = "Power-On Hours"
	LabelPercentageUsed = "Usage"
	LabelDataRead       = "Data Read"
	LabelDataWritten    = "Data Written"
)

var nonNumeric = regexp.MustCompile(`[^0-9.]`)

// Parse extracts a report from the first embed of msg. Missing or
// unparseable fields are 0.
func Parse(msg platform.Message) models.DiskReport {
	report := models.DiskReport{Timestamp: msg.CreatedAt.UTC()}
	if len(msg.Embeds) == 0 {
		return report
	}
	fields := msg.Embeds[0].Fields
	report.Temperature = fieldValue(fields, LabelTemperature)
	report.PowerOnHours = fieldValue(fields, LabelPowerOnHours)
	report.PercentageUsed = fieldValue(fields, LabelPercentageUsed)
	report.DataReadGB = fieldValue(fields, LabelDataRead)
	report.DataWrittenGB = fieldValue(fields, LabelDataWritten)
	return report
}

func fieldValue(fields []platform.EmbedField, label string) float64 {
	for _, f := range fields {
		if !strings.Contains(f.Name, label) {
			continue
		}
		v, err := strconv.ParseFloat(nonNumeric.ReplaceAllString(f.Value, ""), 64)
		if err != nil {
			return 0
		}
		return v
	}
	return 0
}

// Store persists reports.
type Store interface {
	InsertReport(ctx context.Context, report models.DiskReport) error
}

// Sink stores parsed reports and publishes them as gauges.
type Sink struct {
	store   Store
	logger  *zap.Logger
	metrics metrics.Recorder
}

func NewSink(st Store, logger *zap.Logger, rec metrics.Recorder) *Sink {
	return &Sink{store: st, logger: logger.Named("DiskReport"), metrics: rec}
}

// HandleReport parses and records msg. Failures are logged only.
func (s *Sink) HandleReport(ctx context.Context, msg platform.Message) {
	report := Parse(msg)
	s.metrics.RecordDiskReport(report.Temperature, report.PowerOnHours, report.PercentageUsed, report.DataReadGB, report.DataWrittenGB)
	if err := s.store.InsertReport(ctx, report); err != nil {
		s.logger.Error("failed to store disk report", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}
	s.logger.Info("disk report recorded",
		zap.Float64("temperature", report.Temperature),
		zap.Float64("percentage_used", report.PercentageUsed),
	)
}
