package datastore

import "time"

// CacheEntry persists one assembled market record keyed by its normalized
// address. Entries never expire; they are superseded by a later pipeline
// run for the same address or removed by an explicit delete.
type CacheEntry struct {
	ID         uint   `gorm:"primaryKey"`
	AddressKey string `gorm:"uniqueIndex;not null"`
	// Response holds the serialized MarketRecord document.
	Response []byte `gorm:"not null"`
	StoredAt time.Time
}
