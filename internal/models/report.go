package models

import "time"

// DiskReport is one parsed disk-health report from the reporting channel.
type DiskReport struct {
	ID             uint      `json:"id"              gorm:"primaryKey;autoIncrement"`
	Timestamp      time.Time `json:"timestamp"       gorm:"index;not null"`
	Temperature    float64   `json:"temperature"`
	PowerOnHours   float64   `json:"power_on_hours"`
	PercentageUsed float64   `json:"percentage_used"`
	DataReadGB     float64   `json:"data_read_gb"`
	DataWrittenGB  float64   `json:"data_written_gb"`
}

func (DiskReport) TableName() string { return "smart_metrics" }
