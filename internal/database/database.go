// Package database persists transactions and the pattern table in SQLite
// through gorm.
package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"smartbuy/internal/models"
)

// upsertChunkSize keeps a single INSERT under SQLite's bound-variable limit.
const upsertChunkSize = 200

type Database struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewDatabase opens (or creates) the SQLite database at dbPath.
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on&_journal_mode=WAL"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger.WithField("path", dbPath).Info("Database opened")
	return &Database{db: db, logger: logger}, nil
}

// NewTestDB returns a migrated in-memory database.
func NewTestDB() (*Database, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}

	// Every pooled connection to :memory: would see its own empty database.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	d := &Database{db: db, logger: logger}
	if err := d.MigrateSchema(); err != nil {
		return nil, err
	}
	return d, nil
}

// MigrateSchema creates or updates the tables for transactions and patterns.
func (d *Database) MigrateSchema() error {
	if err := d.db.AutoMigrate(&models.Transaction{}, &models.PatternEntry{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// GetDB exposes the underlying gorm handle.
func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// UpsertTransactions writes a batch inside tx, replacing rows that share a
// transaction number. Within a batch the last occurrence of a number wins.
func UpsertTransactions(tx *gorm.DB, batch []*models.Transaction) error {
	unique := dedupeByNumber(batch)
	if len(unique) == 0 {
		return nil
	}

	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "transaction_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"area", "property_type", "bedrooms", "price", "date", "off_plan",
			"registration_type", "size", "latitude", "longitude",
		}),
	}).CreateInBatches(unique, upsertChunkSize).Error
	if err != nil {
		return fmt.Errorf("failed to upsert transactions: %w", err)
	}
	return nil
}

// UpsertTransactions writes a batch in a single database transaction.
func (d *Database) UpsertTransactions(batch []*models.Transaction) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		return UpsertTransactions(tx, batch)
	})
}

// LoadTransactions returns every stored transaction ordered by date.
func (d *Database) LoadTransactions(ctx context.Context) ([]models.Transaction, error) {
	var records []models.Transaction
	if err := d.db.WithContext(ctx).Order("date, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return records, nil
}

// CountTransactions returns the number of stored transactions.
func (d *Database) CountTransactions(ctx context.Context) (int64, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&models.Transaction{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// AreasMissingCoordinates lists the areas that have at least one transaction
// without coordinates.
func (d *Database) AreasMissingCoordinates(ctx context.Context) ([]string, error) {
	var areas []string
	err := d.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("latitude IS NULL OR longitude IS NULL").
		Distinct().
		Order("area").
		Pluck("area", &areas).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query areas without coordinates: %w", err)
	}
	return areas, nil
}

// SetAreaCoordinates fills in the coordinates of every transaction in area
// that has none. Located transactions are left untouched.
func (d *Database) SetAreaCoordinates(ctx context.Context, area string, lat, lon float64) (int64, error) {
	res := d.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("area = ? AND (latitude IS NULL OR longitude IS NULL)", area).
		Updates(map[string]interface{}{"latitude": lat, "longitude": lon})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update coordinates for %s: %w", area, res.Error)
	}
	return res.RowsAffected, nil
}

// ReplacePatterns swaps the stored pattern table for entries, preserving
// their order.
func (d *Database) ReplacePatterns(ctx context.Context, entries []models.PatternEntry) error {
	rows := make([]models.PatternEntry, len(entries))
	for i, e := range entries {
		e.Position = i
		rows[i] = e
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.PatternEntry{}).Error; err != nil {
			return fmt.Errorf("failed to clear patterns: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, upsertChunkSize).Error; err != nil {
			return fmt.Errorf("failed to insert patterns: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	d.logger.WithField("patterns", len(rows)).Info("Pattern table replaced")
	return nil
}

// LoadPatterns returns the stored pattern table in its original order.
func (d *Database) LoadPatterns(ctx context.Context) ([]models.PatternEntry, error) {
	var entries []models.PatternEntry
	if err := d.db.WithContext(ctx).Order("position").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}
	return entries, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dedupeByNumber(batch []*models.Transaction) []*models.Transaction {
	last := make(map[string]int, len(batch))
	for i, t := range batch {
		if t == nil {
			continue
		}
		last[t.TransactionNumber] = i
	}

	unique := make([]*models.Transaction, 0, len(last))
	for i, t := range batch {
		if t != nil && last[t.TransactionNumber] == i {
			unique = append(unique, t)
		}
	}
	return unique
}
