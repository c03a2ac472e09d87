package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/quecocinohoy/backend/config"
	"github.com/quecocinohoy/backend/internal/logger"
)

// DB wraps the gorm handle together with the underlying pool
type DB struct {
	*gorm.DB
	sql *sql.DB
}

// New opens the database selected by cfg.DB.Driver
func New(cfg *config.Config, log *logger.Logger) (*DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	if cfg.IsTest() {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	if cfg.DB.Driver == "sqlite" {
		log.Infow("opening sqlite database", "path", cfg.DB.SQLitePath)
		return OpenSQLite(cfg.DB.SQLitePath, gormCfg)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)

	log.Infow("connecting to database", "host", cfg.DB.Host, "port", cfg.DB.Port, "user", cfg.DB.User)

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormCfg)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	log.Info("successfully connected to database")
	return &DB{DB: gdb, sql: sqlDB}, nil
}

// OpenSQLite opens a sqlite database; use ":memory:" in tests
func OpenSQLite(path string, gormCfg *gorm.Config) (*DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	}
	gdb, err := gorm.Open(sqlite.Open(path), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	// an in-memory database lives as long as its single connection
	sqlDB.SetMaxOpenConns(1)
	return &DB{DB: gdb, sql: sqlDB}, nil
}

// HealthCheck checks if the database is accessible
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

// Close releases the connection pool
func (db *DB) Close() error {
	return db.sql.Close()
}
