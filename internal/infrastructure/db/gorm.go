package db

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"loan-tracker/internal/config"
	applog "loan-tracker/internal/infrastructure/logger"
)

// Open connects to the database selected by cfg.DBDriver.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverMySQL:
		dial = mysql.Open(cfg.MySQLDSN())
	case config.DriverSQLite:
		dial = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}

	db, err := OpenGormWithDialector(dial, applog.GormLevel(cfg.LogLevel))
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == config.DriverSQLite {
		// sqlite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	slog.Info("gorm: connected", "driver", cfg.DBDriver)
	return db, nil
}

func OpenGormWithDialector(dial gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:               logger.Default.LogMode(level),
		DisableAutomaticPing: true,
		NowFunc:              func() time.Time { return time.Now().UTC() },
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
