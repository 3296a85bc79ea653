package repository

import (
	"context"
	"errors"

	journaldomain "github.com/smallbiznis/groupsync/internal/journal/domain"
	"github.com/smallbiznis/groupsync/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() journaldomain.Repository {
	return &repo{}
}

func (r *repo) FindByDedupeKey(ctx context.Context, conn *gorm.DB, source, deliveryID string) (*journaldomain.Delivery, error) {
	var delivery journaldomain.Delivery
	err := conn.WithContext(ctx).
		Where("source = ? AND delivery_id = ?", source, deliveryID).
		First(&delivery).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, delivery *journaldomain.Delivery) error {
	err := conn.WithContext(ctx).Create(delivery).Error
	if db.IsDuplicateKeyErr(err) {
		return journaldomain.ErrDuplicateDelivery
	}
	return err
}
