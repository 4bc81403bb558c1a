package indexer

import (
	"time"

	"gorm.io/gorm"
)

// Receipt is one executed transaction.
type Receipt struct {
	TxHash       string `gorm:"primaryKey;size:66"`
	Height       uint64 `gorm:"uniqueIndex"`
	From         string `gorm:"index;size:42"`
	Method       string `gorm:"index"`
	Status       uint64
	RevertReason string
	Result       string
	StateRoot    string `gorm:"size:66"`
	CreatedAt    time.Time
	Events       []Event `gorm:"foreignKey:TxHash;references:TxHash"`
}

// Event is one event of a successful receipt. Attributes are stored as a JSON
// object.
type Event struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	TxHash     string `gorm:"index;size:66"`
	Height     uint64 `gorm:"index"`
	Position   int
	Type       string `gorm:"index"`
	Attributes string
}

// AutoMigrate creates or updates the indexer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Receipt{}, &Event{})
}
