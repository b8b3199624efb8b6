package services

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a throwaway in-memory database. The schema is created by
// hand because the production DDL leans on postgres server-side defaults.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sqlite: %v", err)
	}
	// One connection keeps the shared-cache database alive and serializes
	// concurrent sweeper tasks the way a single postgres pool slot would.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ddl := []string{
		`CREATE TABLE signal (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			signal_type TEXT NOT NULL,
			confidence INTEGER NOT NULL DEFAULT 0,
			window_start DATETIME,
			window_end DATETIME,
			detected_change TEXT,
			user_impact TEXT,
			suggested_action TEXT,
			evidence_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			expires_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE signal_evidence (
			id TEXT PRIMARY KEY,
			signal_id TEXT NOT NULL,
			evidence_type TEXT NOT NULL,
			source_ref TEXT,
			weight INTEGER NOT NULL DEFAULT 0,
			summary TEXT,
			recorded_at DATETIME,
			created_at DATETIME
		)`,
		`CREATE TABLE forecast_window (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			window_type TEXT NOT NULL,
			domain TEXT NOT NULL,
			time_horizon TEXT NOT NULL,
			start_time DATETIME,
			end_time DATETIME,
			confidence INTEGER NOT NULL DEFAULT 0,
			severity INTEGER,
			leverage INTEGER,
			drivers TEXT,
			recommended_mode TEXT,
			status TEXT NOT NULL,
			invalidation_reason TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE suggestion (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			domain TEXT NOT NULL,
			confidence INTEGER NOT NULL DEFAULT 0,
			suggested_adjustment TEXT,
			rationale TEXT,
			effort_level TEXT,
			safety_disclaimer TEXT,
			fingerprint TEXT,
			trigger_window_id TEXT,
			trigger_signal_id TEXT,
			status TEXT NOT NULL,
			expires_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE adaptation_plan (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			domains_to_update TEXT,
			adjustments TEXT,
			adaptation_strength INTEGER NOT NULL DEFAULT 0,
			confidence INTEGER NOT NULL DEFAULT 0,
			triggered_by TEXT NOT NULL,
			trigger_drift_id TEXT,
			status TEXT NOT NULL,
			confirmation_needed INTEGER NOT NULL DEFAULT 0,
			can_rollback INTEGER NOT NULL DEFAULT 1,
			rollback_until DATETIME,
			snapshot_id TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE personalization_snapshot (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			plan_id TEXT NOT NULL,
			state TEXT,
			version INTEGER NOT NULL DEFAULT 0,
			expires_at DATETIME,
			created_at DATETIME
		)`,
		`CREATE TABLE personalization_profile (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			settings TEXT,
			version INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		)`,
	}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}
