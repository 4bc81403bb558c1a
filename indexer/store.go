// Package indexer copies committed receipts and their events into a SQL store
// so they can be queried by type without walking the state trie.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cdfichain/core/types"
)

const (
	DefaultEventLimit = 100
	MaxEventLimit     = 1000
)

var ErrNotFound = errors.New("indexer: not found")

// Store persists receipts. It implements the node's receipt sink.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open picks the driver from dsn: postgres:// and postgresql:// URLs use
// Postgres, anything else is handed to SQLite.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	return New(db, logger)
}

// New wraps an open database and migrates the schema.
func New(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PublishReceipt indexes r. Failures are logged; the chain is the source of
// truth and the index can be rebuilt.
func (s *Store) PublishReceipt(r *types.Receipt) {
	if err := s.Index(r); err != nil {
		s.logger.Error("index receipt failed", "txhash", r.TxHash.Hex(), "height", r.Height, "error", err)
	}
}

// Index stores r and its events in one transaction. Re-indexing the same
// hash is a no-op.
func (s *Store) Index(r *types.Receipt) error {
	if r == nil {
		return fmt.Errorf("indexer: nil receipt")
	}
	result, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("indexer: encode result: %w", err)
	}
	row := Receipt{
		TxHash:       r.TxHash.Hex(),
		Height:       r.Height,
		From:         r.From.Hex(),
		Method:       r.Method,
		Status:       r.Status,
		RevertReason: r.RevertReason,
		Result:       string(result),
		StateRoot:    r.StateRoot.Hex(),
	}
	events := make([]Event, 0, len(r.Events))
	for i, evt := range r.Events {
		attrs, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("indexer: encode event %d: %w", i, err)
		}
		events = append(events, Event{
			TxHash:     row.TxHash,
			Height:     r.Height,
			Position:   i,
			Type:       evt.Type,
			Attributes: string(attrs),
		})
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 || len(events) == 0 {
			return nil
		}
		return tx.Create(&events).Error
	})
}

// Receipt loads an indexed receipt by hash.
func (s *Store) Receipt(hash string) (*Receipt, error) {
	var row Receipt
	err := s.db.Preload("Events", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc")
	}).Where("tx_hash = ?", hash).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Events returns the newest events first. An empty eventType matches every
// type.
func (s *Store) Events(eventType string, limit int) ([]types.Event, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	if limit > MaxEventLimit {
		limit = MaxEventLimit
	}
	query := s.db.Model(&Event{}).Order("height desc").Order("position desc").Limit(limit)
	if eventType != "" {
		query = query.Where("type = ?", eventType)
	}
	var rows []Event
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.Event, 0, len(rows))
	for _, row := range rows {
		attrs := map[string]string{}
		if err := json.Unmarshal([]byte(row.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("indexer: decode event %d: %w", row.ID, err)
		}
		attrs["txHash"] = row.TxHash
		attrs["height"] = fmt.Sprintf("%d", row.Height)
		out = append(out, types.Event{Type: row.Type, Attributes: attrs})
	}
	return out, nil
}
