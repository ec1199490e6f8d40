package cdr

import (
	"os"
	"testing"
	"time"

	"github.com/dbehnke/p25bridge/pkg/logger"
)

func TestNewDB(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	dbPath := "/tmp/test_p25bridge_cdr.db"
	defer func() { _ = os.Remove(dbPath) }()

	db, err := NewDB(Config{Path: dbPath}, log)
	if err != nil {
		t.Fatalf("failed to create cdr database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if db.db == nil {
		t.Error("expected non-nil database connection")
	}
}

func TestNewDB_DefaultPath(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	defer func() { _ = os.Remove("p25bridge.db") }()

	db, err := NewDB(Config{}, log)
	if err != nil {
		t.Fatalf("failed to create cdr database with default path: %v", err)
	}
	defer func() { _ = db.Close() }()
}

func TestCallRecord_BeforeCreate(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	dbPath := "/tmp/test_p25bridge_callrecord.db"
	defer func() { _ = os.Remove(dbPath) }()

	db, err := NewDB(Config{Path: dbPath}, log)
	if err != nil {
		t.Fatalf("failed to create cdr database: %v", err)
	}
	defer func() { _ = db.Close() }()

	rec := &CallRecord{
		Direction:   "rx",
		SrcID:       500,
		DstID:       10,
		StreamID:    1,
		DurationSec: 3.2,
	}

	repo := NewRepository(db.GetDB())
	if err := repo.Create(rec); err != nil {
		t.Fatalf("failed to create call record: %v", err)
	}
	if rec.ID == 0 {
		t.Error("expected non-zero ID after creation")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set by hook")
	}
	if rec.StartTime.IsZero() {
		t.Error("expected StartTime to be set by hook")
	}
}

func TestRepository_GetRecentAndFilters(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	dbPath := "/tmp/test_p25bridge_repo.db"
	defer func() { _ = os.Remove(dbPath) }()

	db, err := NewDB(Config{Path: dbPath}, log)
	if err != nil {
		t.Fatalf("failed to create cdr database: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewRepository(db.GetDB())
	now := time.Now()
	records := []*CallRecord{
		{Direction: "rx", SrcID: 500, DstID: 10, DurationSec: 1, StartTime: now.Add(-2 * time.Hour)},
		{Direction: "tx", SrcID: 10, DstID: 500, DurationSec: 2, StartTime: now.Add(-1 * time.Hour)},
		{Direction: "rx", SrcID: 500, DstID: 20, Ignored: true, DurationSec: 0, StartTime: now},
	}
	for _, r := range records {
		if err := repo.Create(r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	recent, err := repo.GetRecent(2)
	if err != nil {
		t.Fatalf("GetRecent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent records, got %d", len(recent))
	}

	bySrc, err := repo.GetBySrcID(500, 10)
	if err != nil {
		t.Fatalf("GetBySrcID: %v", err)
	}
	if len(bySrc) != 2 {
		t.Fatalf("expected 2 records for src 500, got %d", len(bySrc))
	}

	ignored, err := repo.IgnoredCount(now.Add(-3 * time.Hour))
	if err != nil {
		t.Fatalf("IgnoredCount: %v", err)
	}
	if ignored != 1 {
		t.Fatalf("expected 1 ignored call, got %d", ignored)
	}
}
