package cdr

import (
	"time"

	"gorm.io/gorm"
)

// Repository handles call-detail-record database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps a *gorm.DB for call-record access.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts one completed call record.
func (r *Repository) Create(rec *CallRecord) error {
	return r.db.Create(rec).Error
}

// GetRecent retrieves the most recent N call records.
func (r *Repository) GetRecent(limit int) ([]CallRecord, error) {
	var records []CallRecord
	err := r.db.Order("start_time DESC").Limit(limit).Find(&records).Error
	return records, err
}

// GetBySrcID retrieves call records for a specific source radio.
func (r *Repository) GetBySrcID(srcID uint32, limit int) ([]CallRecord, error) {
	var records []CallRecord
	err := r.db.Where("src_id = ?", srcID).
		Order("start_time DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// GetByDstID retrieves call records for a specific talkgroup/destination.
func (r *Repository) GetByDstID(dstID uint32, limit int) ([]CallRecord, error) {
	var records []CallRecord
	err := r.db.Where("dst_id = ?", dstID).
		Order("start_time DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// GetByTimeRange retrieves call records within a time window.
func (r *Repository) GetByTimeRange(start, end time.Time, limit int) ([]CallRecord, error) {
	var records []CallRecord
	err := r.db.Where("start_time BETWEEN ? AND ?", start, end).
		Order("start_time DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// DeleteOlderThan removes call records older than the given time,
// returning the number of rows removed.
func (r *Repository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("start_time < ?", before).Delete(&CallRecord{})
	return result.RowsAffected, result.Error
}

// IgnoredCount returns the number of ignored calls recorded since since.
func (r *Repository) IgnoredCount(since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&CallRecord{}).
		Where("ignored = ? AND start_time >= ?", true, since).
		Count(&count).Error
	return count, err
}
