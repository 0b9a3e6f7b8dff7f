package storage

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var _ KV = (*SQLite)(nil)

type entry struct {
	Name  string `gorm:"primaryKey"`
	Value string
}

func (entry) TableName() string { return "session_kv" }

// SQLite keeps keys in a single table of a local SQLite database.
type SQLite struct {
	db *gorm.DB
}

// NewSQLite opens (creating if needed) the database at path. ":memory:" is accepted.
func NewSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(key string) (string, bool, error) {
	var e entry
	err := s.db.Where("name = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Value, true, nil
}

func (s *SQLite) Set(entries map[string]string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for k, v := range entries {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"value"}),
			}).Create(&entry{Name: k, Value: v}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLite) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.Where("name IN ?", keys).Delete(&entry{}).Error
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
