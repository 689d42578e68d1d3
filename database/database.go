// Package database provides database connection and migration functionality
package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alertmtl.app/config"
	"alertmtl.app/models"
	"alertmtl.app/waste"
)

// InitDB initializes the database connection
func InitDB(config config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(config.GetDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return db, nil
}

// RunMigrations executes database schema migrations
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Subscriber{},
		&models.Address{},
		&models.AlertRecord{},
		&models.ZoneScheduleRule{},
		&models.GeobaseEntry{},
	)
}

// SeedZoneRules inserts the built-in collection timetable for any zone that
// has no rule yet. Rows edited by operators are left untouched.
func SeedZoneRules(db *gorm.DB) (int64, error) {
	rules := waste.DefaultRules()
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "zone"}},
		DoNothing: true,
	}).CreateInBatches(rules, 100)
	if result.Error != nil {
		return 0, fmt.Errorf("seed zone rules: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// CloseDB safely closes the database connection
func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
