package main

import (
	"time"

	"github.com/Kyz7/kolegium/internal/auth"
	"github.com/Kyz7/kolegium/internal/config"
	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/obs"
	"github.com/Kyz7/kolegium/internal/role"
	"github.com/Kyz7/kolegium/internal/server"
	"github.com/Kyz7/kolegium/internal/storage"
	"github.com/Kyz7/kolegium/internal/utils"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()

	log := obs.Log
	obs.SetLogLevel(log, cfg.LogLevel)
	if cfg.LogFormat == "json" {
		obs.UseJSON(log)
	}

	if err := utils.ValidateJWTSecret(cfg.JWTSecret); err != nil {
		log.WithError(err).Fatal("JWT configuration error")
	}
	utils.SetJWTSecret(cfg.JWTSecret)

	if missing := cfg.Missing(); len(missing) > 0 {
		log.WithField("missing", missing).Fatal("required environment variables are not set")
	}

	// ========== DATABASE SETUP ==========
	db, err := database.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}

	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	if err := database.RunMigrations(db, database.DefaultMigrationsPath); err != nil {
		log.WithError(err).Warn("SQL migrations failed, scoped lookups may be slower")
	}

	// ========== STORAGE SETUP ==========
	if err := storage.InitLocalStorage(storage.UploadBasePath); err != nil {
		log.WithError(err).Fatal("failed to initialize local storage")
	}

	if cfg.UseS3 {
		if cfg.S3Bucket == "" || cfg.S3Region == "" {
			log.Warn("USE_S3=true but S3_BUCKET or S3_REGION not configured, falling back to local storage")
		} else if err := storage.InitS3(cfg.S3Bucket, cfg.S3Region, cfg.CloudFrontURL); err != nil {
			log.WithError(err).Warn("S3 initialization failed, falling back to local storage")
		} else {
			log.WithFields(logrus.Fields{"bucket": cfg.S3Bucket, "region": cfg.S3Region}).Info("using S3 storage")
		}
	}

	auth.ConfigureGoogle(cfg)

	// ========== SEED DEFAULT DATA ==========
	if err := role.SeedDefaultRoles(db); err != nil {
		log.WithError(err).Fatal("failed to seed default roles")
	}
	if err := role.SeedSuperAdmin(db, cfg.SuperAdminEmail, cfg.SuperAdminPassword); err != nil {
		log.WithError(err).Error("failed to seed super admin")
	}

	// ========== BACKGROUND JOBS ==========
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			n, err := utils.CleanupRefreshTokens()
			if err != nil {
				log.WithError(err).Warn("refresh token cleanup failed")
				continue
			}
			if n > 0 {
				log.WithField("count", n).Info("cleaned up expired refresh tokens")
			}
		}
	}()

	// ========== START SERVER ==========
	app := server.New(db, server.Options{
		UploadDir: storage.UploadBasePath,
		RateLimit: true,
		AccessLog: cfg.AccessLog,
	})

	log.WithFields(logrus.Fields{
		"addr":    cfg.ServerAddr,
		"storage": storage.Mode(),
	}).Info("Kolegium server starting")

	if err := app.Listen(cfg.ServerAddr); err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
}
