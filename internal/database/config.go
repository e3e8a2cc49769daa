package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"smiles/internal/config"
	"smiles/internal/models"
	"smiles/internal/utils"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	maxRetries = 5
	retryDelay = time.Second * 5
)

// Open connects to the configured database, migrates the schema and seeds the stats row.
// The returned handle is meant to be built once at startup and passed to every service.
func Open(cfg config.Database, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		// The reminder worker polls every interval; keep its queries out of the log
		Logger: utils.NewGormLogger(log, "confirmation_reminder"),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		PrepareStmt:                              cfg.Driver == "postgres",
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: false,
	}

	var db *gorm.DB
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(dialector, gormConfig)
		if err == nil {
			break
		}
		log.Warn("Database connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// One writer at a time; a second idle connection to an in-memory database would see an empty schema
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("Database connection established and migrations completed", zap.String("driver", cfg.Driver))
	return db, nil
}

// Migrate creates or updates every table and makes sure the stats row exists
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Sender{},
		&models.Message{},
		&models.EmailNotification{},
		&models.Stats{},
		&models.Waitlist{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	stats := models.Stats{ID: models.StatsID, LastUpdated: time.Now()}
	if err := db.Where(models.Stats{ID: models.StatsID}).FirstOrCreate(&stats).Error; err != nil {
		return fmt.Errorf("failed to seed stats row: %w", err)
	}
	return nil
}

func dialectorFor(cfg config.Database) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(postgresDSN(cfg)), nil
	case "sqlite":
		dsn, err := sqliteDSN(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func postgresDSN(cfg config.Database) string {
	// DATABASE_URL wins when the platform provides one
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC connect_timeout=10",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, cfg.SSLMode)
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", errors.New("DB_PATH must be set for the sqlite driver")
	}

	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	if strings.HasPrefix(path, "file:") {
		if strings.Contains(path, "?") {
			return path + "&" + pragmas, nil
		}
		return path + "?" + pragmas, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return path + "?" + pragmas, nil
}
