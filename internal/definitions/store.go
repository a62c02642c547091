package definitions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrNotFound  = errors.New("service definition not found")
	ErrDuplicate = errors.New("service definition already exists")
)

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the definition database.
func Open(driver, dsn string, log *slog.Logger) (*Store, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = openSQLite(dsn, cfg, log)
	case DriverPostgres:
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}

	log.Info("definition store opened", slog.String("driver", driver))
	return New(db, log), nil
}

func openSQLite(path string, cfg *gorm.Config, log *slog.Logger) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn("could not create database directory", slog.String("directory", dir), slog.String("error", err.Error()))
		}
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	return gorm.Open(sqlite.Dialector{Conn: sqlDB}, cfg)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, log *slog.Logger) *Store {
	return &Store{db: db, logger: log}
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateSchemaIfMissing(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Definition{}); err != nil {
		return fmt.Errorf("migrate services table: %w", err)
	}
	return nil
}

// ListAll returns every definition ordered by name.
func (s *Store) ListAll(ctx context.Context) ([]Definition, error) {
	var defs []Definition
	if err := s.db.WithContext(ctx).Order("name").Find(&defs).Error; err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return defs, nil
}

func (s *Store) Get(ctx context.Context, name string) (Definition, error) {
	var def Definition
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&def).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Definition{}, ErrNotFound
	}
	if err != nil {
		return Definition{}, fmt.Errorf("get service %q: %w", name, err)
	}
	return def, nil
}

// Insert adds a new definition. It fails with ErrDuplicate if the name is taken.
func (s *Store) Insert(ctx context.Context, def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Definition{}).Where("name = ?", def.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("insert service %q: %w", def.Name, err)
		}
		if count > 0 {
			return ErrDuplicate
		}
		if err := tx.Create(&def).Error; err != nil {
			return fmt.Errorf("insert service %q: %w", def.Name, err)
		}
		return nil
	})
}

// Upsert inserts def or replaces the row with the same name.
func (s *Store) Upsert(ctx context.Context, def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			UpdateAll: true,
		}).
		Create(&def).Error
	if err != nil {
		return fmt.Errorf("upsert service %q: %w", def.Name, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&Definition{})
	if res.Error != nil {
		return fmt.Errorf("delete service %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
