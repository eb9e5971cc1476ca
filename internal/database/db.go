package database

import (
	"fmt"

	"github.com/Kyz7/kolegium/internal/config"
	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/obs"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	DB = db

	return db, nil
}

// Models lists every table managed by AutoMigrate, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Permission{},
		&models.Role{},
		&models.Affiliation{},
		&models.AffiliationProfile{},
		&models.User{},
		&models.RefreshToken{},
		&models.Agenda{},
		&models.Gallery{},
		&models.Member{},
		&models.OrgStructureMember{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	obs.Log.Info("database schema migrated")
	return nil
}
