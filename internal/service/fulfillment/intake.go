package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vendalive/fulfillment/internal/models"
)

var deliveryMethods = map[string]bool{
	models.DeliveryPickup:  true,
	models.DeliveryCourier: true,
	models.DeliveryPostal:  true,
}

// CreateOrder opens the customer's cart for the live event.
func (s *Service) CreateOrder(ctx context.Context, eventID, customerID uint, deliveryMethod string, actor models.Actor) (*models.Order, error) {
	if !deliveryMethods[deliveryMethod] {
		return nil, fmt.Errorf("%w: unknown delivery method %q", ErrValidation, deliveryMethod)
	}
	if customerID == 0 {
		return nil, fmt.Errorf("%w: customer is required", ErrValidation)
	}

	order := models.Order{
		EventID:             eventID,
		CustomerID:          customerID,
		CartStatus:          models.CartOpen,
		OperationalStatus:   models.StatusAwaitingPayment,
		DeliveryMethod:      deliveryMethod,
		PaymentReviewStatus: models.ReviewNone,
	}
	if actor.Role == models.RoleSeller {
		sellerID := actor.ID
		order.SellerID = &sellerID
	}

	var entry models.StatusHistoryEntry

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.LiveEvent
		if err := tx.First(&event, eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: event %d", ErrNotFound, eventID)
			}
			return err
		}

		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		var err error
		entry, err = appendHistory(tx, s.now(), order.ID, "", models.StatusAwaitingPayment, "order created", actor.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.indexHistory(ctx, entry)
	s.publish(ctx, "order_created", order.ID, actor, map[string]interface{}{
		"event_id":    eventID,
		"customer_id": customerID,
	})

	return s.GetOrder(ctx, order.ID)
}

// AddItemInput describes one reserved line. UnitPrice zero marks a gift,
// which lands in the gift collection and never touches totals.
type AddItemInput struct {
	ProductID       uint
	Size            string
	Color           string
	Quantity        int
	UnitPrice       int64
	GiftDescription string
}

func (s *Service) AddItem(ctx context.Context, orderID uint, in AddItemInput, actor models.Actor) (*models.Order, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}
	if in.UnitPrice < 0 {
		return nil, fmt.Errorf("%w: price must be >= 0", ErrValidation)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrderTx(tx, orderID)
		if err != nil {
			return err
		}
		if order.CartStatus != models.CartOpen && order.CartStatus != models.CartAwaitingPayment {
			return fmt.Errorf("%w: items cannot change once the order is %s", ErrPrecondition, order.CartStatus)
		}

		if in.UnitPrice == 0 {
			desc := in.GiftDescription
			if desc == "" {
				var p models.Product
				if err := tx.First(&p, in.ProductID).Error; err == nil {
					desc = p.Name
				} else {
					desc = "gift"
				}
			}
			return tx.Create(&models.GiftItem{
				OrderID:          orderID,
				Description:      desc,
				Quantity:         in.Quantity,
				SeparationStatus: models.SepPending,
			}).Error
		}

		if in.ProductID == 0 {
			return fmt.Errorf("%w: product is required", ErrValidation)
		}
		item := models.OrderItem{
			OrderID:          orderID,
			ProductID:        in.ProductID,
			Size:             in.Size,
			Color:            in.Color,
			Quantity:         in.Quantity,
			UnitPrice:        in.UnitPrice,
			ItemStatus:       models.ItemReserved,
			SeparationStatus: models.SepPending,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		return recomputeTotals(tx, orderID)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "item_added", orderID, actor, map[string]interface{}{
		"product_id": in.ProductID,
		"quantity":   in.Quantity,
		"unit_price": in.UnitPrice,
	})

	return s.GetOrder(ctx, orderID)
}

// SetDelivery updates delivery method and shipping cost pre-payment and
// recomputes the total. Totals are immutable once paid.
func (s *Service) SetDelivery(ctx context.Context, orderID uint, method string, shipping int64, period, notes string, actor models.Actor) (*models.Order, error) {
	if !deliveryMethods[method] {
		return nil, fmt.Errorf("%w: unknown delivery method %q", ErrValidation, method)
	}
	if shipping < 0 {
		return nil, fmt.Errorf("%w: shipping must be >= 0", ErrValidation)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrderTx(tx, orderID)
		if err != nil {
			return err
		}
		if order.CartStatus == models.CartPaid || order.CartStatus == models.CartCancelled {
			return fmt.Errorf("%w: delivery cannot change once the order is %s", ErrPrecondition, order.CartStatus)
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", orderID).
			Updates(map[string]interface{}{
				"delivery_method": method,
				"shipping":        shipping,
				"delivery_period": period,
				"delivery_notes":  notes,
			}).Error; err != nil {
			return err
		}
		return recomputeTotals(tx, orderID)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "delivery_updated", orderID, actor, map[string]interface{}{
		"delivery_method": method,
		"shipping":        shipping,
	})

	return s.GetOrder(ctx, orderID)
}

// ApplyDiscount sets the order-level discount pre-payment.
func (s *Service) ApplyDiscount(ctx context.Context, orderID uint, discount int64, actor models.Actor) (*models.Order, error) {
	if discount < 0 {
		return nil, fmt.Errorf("%w: discount must be >= 0", ErrValidation)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrderTx(tx, orderID)
		if err != nil {
			return err
		}
		if order.CartStatus == models.CartPaid || order.CartStatus == models.CartCancelled {
			return fmt.Errorf("%w: totals are frozen once the order is %s", ErrPrecondition, order.CartStatus)
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", orderID).
			Update("discounts", discount).Error; err != nil {
			return err
		}
		return recomputeTotals(tx, orderID)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "discount_applied", orderID, actor, map[string]interface{}{"discount": discount})

	return s.GetOrder(ctx, orderID)
}

// ListHistory exposes the append-only audit trail.
func (s *Service) ListHistory(ctx context.Context, orderID uint) ([]models.StatusHistoryEntry, error) {
	return s.Repo.ListHistory(ctx, orderID)
}
