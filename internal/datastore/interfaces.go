// Package datastore implements the persistent market-record cache on top
// of GORM with SQLite and MySQL backends.
package datastore

import (
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/capmatch/marketdata/internal/conf"
	"github.com/capmatch/marketdata/internal/errors"
)

const component = "datastore"

// Interface abstracts the cache store backend.
type Interface interface {
	Open() error
	Get(addressKey string) (*CacheEntry, error)
	Put(addressKey string, response []byte) error
	Delete(addressKey string) error
	List() ([]string, error)
	Close() error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB     *gorm.DB
	logger *slog.Logger
}

// New creates a store instance for the configured backend.
func New(settings *conf.Settings, logger *slog.Logger) Interface {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", component)

	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{logger: logger},
			Settings:  settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{logger: logger},
			Settings:  settings,
		}
	default:
		return nil
	}
}

// Get returns the cache entry for a normalized address, or a not-found
// error when absent.
func (ds *DataStore) Get(addressKey string) (*CacheEntry, error) {
	var entry CacheEntry
	err := ds.DB.Where("address_key = ?", addressKey).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("no cache entry for %q", addressKey).
				Category(errors.CategoryNotFound).
				Context("address_key", addressKey).
				Component(component).
				Build()
		}
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "cache_get").
			Component(component).
			Build()
	}
	return &entry, nil
}

// Put stores a serialized record under a normalized address. Concurrent
// writes for the same key resolve last-write-wins through an atomic
// upsert; a torn write is not possible.
func (ds *DataStore) Put(addressKey string, response []byte) error {
	entry := CacheEntry{
		AddressKey: addressKey,
		Response:   response,
		StoredAt:   time.Now().UTC(),
	}
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"response", "stored_at"}),
	}).Create(&entry).Error
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "cache_put").
			Context("address_key", addressKey).
			Component(component).
			Build()
	}
	ds.logger.Debug("cache entry stored", "address_key", addressKey, "bytes", len(response))
	return nil
}

// Delete removes one cache entry; deleting an absent key is a not-found
// error so the API can answer 404.
func (ds *DataStore) Delete(addressKey string) error {
	res := ds.DB.Where("address_key = ?", addressKey).Delete(&CacheEntry{})
	if res.Error != nil {
		return errors.New(res.Error).
			Category(errors.CategoryDatabase).
			Context("operation", "cache_delete").
			Component(component).
			Build()
	}
	if res.RowsAffected == 0 {
		return errors.Newf("no cache entry for %q", addressKey).
			Category(errors.CategoryNotFound).
			Context("address_key", addressKey).
			Component(component).
			Build()
	}
	ds.logger.Debug("cache entry deleted", "address_key", addressKey)
	return nil
}

// List returns all cached normalized addresses, most recently written
// first.
func (ds *DataStore) List() ([]string, error) {
	var keys []string
	err := ds.DB.Model(&CacheEntry{}).
		Order("stored_at DESC").
		Pluck("address_key", &keys).Error
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "cache_list").
			Component(component).
			Build()
	}
	return keys, nil
}

// Close releases the underlying connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// performAutoMigration reconciles the cache schema.
func performAutoMigration(db *gorm.DB) error {
	if err := db.AutoMigrate(&CacheEntry{}); err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Component(component).
			Build()
	}
	return nil
}
