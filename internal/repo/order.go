package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/vendalive/fulfillment/internal/models"
)

var ErrNotFound = errors.New("not found")

type GormRepo struct {
	DB *gorm.DB
}

func orderByID(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }

func (r *GormRepo) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items", orderByID).
		Preload("Gifts", orderByID).
		First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) GetItem(ctx context.Context, itemID uint) (*models.OrderItem, error) {
	var item models.OrderItem
	err := r.DB.WithContext(ctx).First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListBags returns every order of the event that holds a bag number, in bag
// order, with lines preloaded for status derivation.
func (r *GormRepo) ListBags(ctx context.Context, eventID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items", orderByID).
		Preload("Gifts", orderByID).
		Where("event_id = ? AND bag_number IS NOT NULL", eventID).
		Order("bag_number ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormRepo) ListHistory(ctx context.Context, orderID uint) ([]models.StatusHistoryEntry, error) {
	var entries []models.StatusHistoryEntry
	err := r.DB.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
