// Package domain contains persistence models for the sync journal: one row
// per processed webhook delivery, with dedupe metadata so redeliveries are
// idempotent.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Delivery records one processed commerce event delivery. The
// (source, delivery_id) pair is unique; a redelivered event short-circuits
// with the recorded outcome.
type Delivery struct {
	ID              snowflake.ID      `gorm:"primaryKey"`
	Source          string            `gorm:"type:text;not null;uniqueIndex:ux_delivery_dedupe,priority:1"`
	DeliveryID      string            `gorm:"type:text;not null;uniqueIndex:ux_delivery_dedupe,priority:2"`
	EventType       string            `gorm:"type:text;not null;index"`
	Payload         datatypes.JSONMap `gorm:"type:jsonb"`
	CommandsApplied int               `gorm:"not null;default:0"`
	CommandsSkipped int               `gorm:"not null;default:0"`
	CommandsFailed  int               `gorm:"not null;default:0"`
	Failures        datatypes.JSON    `gorm:"type:jsonb"`
	ProcessedAt     time.Time         `gorm:"not null"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Delivery) TableName() string { return "sync_deliveries" }

type Repository interface {
	// FindByDedupeKey returns nil when the delivery has not been seen.
	FindByDedupeKey(ctx context.Context, db *gorm.DB, source, deliveryID string) (*Delivery, error)
	Insert(ctx context.Context, db *gorm.DB, delivery *Delivery) error
}

var ErrDuplicateDelivery = errors.New("duplicate_delivery")
