package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Kyz7/kolegium/internal/obs"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migration records a hand-written SQL file applied on top of AutoMigrate
// (partial indexes, check constraints).
type Migration struct {
	ID        uint      `gorm:"primaryKey"`
	Version   string    `gorm:"uniqueIndex;size:255"`
	AppliedAt time.Time
}

const DefaultMigrationsPath = "./migrations"

func RunMigrations(db *gorm.DB, dir string) error {
	if err := db.AutoMigrate(&Migration{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		filename := filepath.Base(file)
		if len(filename) > len("rollback_") && filename[:len("rollback_")] == "rollback_" {
			continue
		}
		log := obs.Log.WithField("migration", filename)

		var existing int64
		if err := db.Model(&Migration{}).Where("version = ?", filename).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check migration %s: %w", filename, err)
		}
		if existing > 0 {
			log.Debug("skipping migration, already applied")
			continue
		}

		sqlContent, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(sqlContent)).Error; err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", filename, err)
			}
			return tx.Create(&Migration{Version: filename, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return err
		}

		log.Info("applied migration")
	}

	return nil
}

func RollbackMigration(db *gorm.DB, dir, version string) error {
	var migration Migration
	if err := db.Where("version = ?", version).First(&migration).Error; err != nil {
		return fmt.Errorf("migration not found: %s", version)
	}

	rollbackFile := filepath.Join(dir, "rollback_"+version)
	sqlContent, err := os.ReadFile(rollbackFile)
	if err != nil {
		return fmt.Errorf("rollback file not found: %s", rollbackFile)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(string(sqlContent)).Error; err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		return tx.Delete(&migration).Error
	})
	if err != nil {
		return err
	}

	obs.Log.WithFields(logrus.Fields{"migration": version}).Info("rolled back migration")
	return nil
}

func GetAppliedMigrations(db *gorm.DB) ([]Migration, error) {
	var migrations []Migration
	if err := db.Order("applied_at DESC").Find(&migrations).Error; err != nil {
		return nil, err
	}
	return migrations, nil
}
