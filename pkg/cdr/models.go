package cdr

import (
	"time"

	"gorm.io/gorm"
)

// CallRecord is one completed P25 call. cmd/p25bridge records one per
// RX call end and per ignored RX call; TX calls are not recorded
// (spec §7 "every call end carries srcId, dstId, durationSec").
type CallRecord struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Direction   string    `gorm:"index;not null;size:2" json:"direction"` // "rx" or "tx"
	SrcID       uint32    `gorm:"index;not null" json:"src_id"`
	DstID       uint32    `gorm:"index;not null" json:"dst_id"`
	StreamID    uint32    `gorm:"index" json:"stream_id"`
	Encrypted   bool      `gorm:"not null;default:false" json:"encrypted"`
	AlgID       uint8     `json:"alg_id"`
	KeyID       uint16    `json:"key_id"`
	Ignored     bool      `gorm:"not null;default:false" json:"ignored"`
	DurationSec float64   `gorm:"not null" json:"duration_sec"`
	StartTime   time.Time `gorm:"index;not null" json:"start_time"`
	EndTime     time.Time `gorm:"not null" json:"end_time"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName pins the table name regardless of Go naming conventions.
func (CallRecord) TableName() string { return "call_records" }

// BeforeCreate fills in timestamps a caller forgot to set.
func (c *CallRecord) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.StartTime.IsZero() {
		c.StartTime = time.Now()
	}
	if c.EndTime.IsZero() {
		c.EndTime = time.Now()
	}
	return nil
}
