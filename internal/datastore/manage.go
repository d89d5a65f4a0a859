// manage.go: shared database management helpers for the datastore backends
package datastore

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// createGormLogger returns a GORM logger that stays quiet unless queries are
// slow or failing.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Error
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// performAutoMigration runs schema migration for all models on the given
// database connection.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&CountResult{}, &Correction{}, &LearnedCategory{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}
	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}
	return nil
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return fmt.Errorf("getting database connection for close: %w", err)
	}
	return sqlDB.Close()
}
