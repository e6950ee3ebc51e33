package fulfillment

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/vendalive/fulfillment/internal/models"
)

// canonicalOrder is the forward ordering used by Revert's one-step rule.
var canonicalOrder = []string{
	models.StatusAwaitingPayment,
	models.StatusAwaitingResponse,
	models.StatusPaid,
	models.StatusPrepShipping,
	models.StatusLabelGenerated,
	models.StatusPosted,
	models.StatusInTransit,
	models.StatusAwaitingPickup,
	models.StatusDelivered,
}

func statusRank(status string) int {
	for i, s := range canonicalOrder {
		if s == status {
			return i
		}
	}
	return -1
}

var paidRank = statusRank(models.StatusPaid)

// nextStatus computes the single legal next operational status for the
// order's delivery method, or the precondition that blocks it.
func nextStatus(o *models.Order) (string, error) {
	switch o.OperationalStatus {
	case models.StatusAwaitingPayment, models.StatusAwaitingResponse:
		return "", fmt.Errorf("%w: payment must be confirmed before advancing", ErrPrecondition)

	case models.StatusPaid, models.StatusPendingData:
		switch o.DeliveryMethod {
		case models.DeliveryPostal:
			return models.StatusPrepShipping, nil
		case models.DeliveryCourier:
			// Courier never jumps straight to delivered.
			return models.StatusInTransit, nil
		case models.DeliveryPickup:
			return models.StatusAwaitingPickup, nil
		}
		return "", fmt.Errorf("%w: unknown delivery method %q", ErrValidation, o.DeliveryMethod)

	case models.StatusPrepShipping:
		if o.LabelURL == "" && o.TrackingCode == "" {
			return "", fmt.Errorf("%w: label generation must complete before advancing past prep_shipping", ErrPrecondition)
		}
		return models.StatusLabelGenerated, nil

	case models.StatusLabelGenerated:
		if o.LabelURL == "" && o.TrackingCode == "" {
			return "", fmt.Errorf("%w: postal shipment requires a label or tracking reference", ErrPrecondition)
		}
		if o.NeedsLabelReprint {
			return "", fmt.Errorf("%w: bag contents changed after labeling, label must be reprinted", ErrPrecondition)
		}
		return models.StatusPosted, nil

	case models.StatusPosted:
		if o.TrackingCode == "" {
			return "", fmt.Errorf("%w: postal shipment requires a tracking code", ErrPrecondition)
		}
		return models.StatusDelivered, nil

	case models.StatusInTransit, models.StatusAwaitingPickup:
		return models.StatusDelivered, nil

	case models.StatusDelivered:
		return "", fmt.Errorf("%w: order already delivered", ErrPrecondition)
	}
	return "", fmt.Errorf("%w: no legal transition from %q", ErrPrecondition, o.OperationalStatus)
}

// Advance moves the order to its single legal next operational status. The
// write is a conditional update guarded by the status read in this
// transaction, so two operators advancing concurrently cannot double-step.
func (s *Service) Advance(ctx context.Context, orderID uint, actor models.Actor) (*models.Order, error) {
	var (
		entry models.StatusHistoryEntry
		next  string
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrderTx(tx, orderID)
		if err != nil {
			return err
		}

		if order.PaymentReviewStatus == models.ReviewPending {
			return fmt.Errorf("%w: order %d", ErrPaymentUnderReview, orderID)
		}

		if order.BagNumber != nil {
			bagStatus, err := deriveBagStatusTx(tx, order)
			if err != nil {
				return err
			}
			if bagStatus == models.BagAttention {
				return fmt.Errorf("%w: bag #%d requires attention before it can advance", ErrPrecondition, *order.BagNumber)
			}
		}

		next, err = nextStatus(order)
		if err != nil {
			return err
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND operational_status = ?", orderID, order.OperationalStatus).
			Update("operational_status", next)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order %d changed concurrently", ErrConflict, orderID)
		}

		entry, err = appendHistory(tx, s.now(), orderID, order.OperationalStatus, next, "", actor.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.indexHistory(ctx, entry)
	s.publish(ctx, "status_advanced", orderID, actor, map[string]interface{}{
		"old_status": entry.OldStatus,
		"new_status": next,
	})

	return s.GetOrder(ctx, orderID)
}

// MarkPendingData parks a paid order whose label generation cannot proceed,
// typically because customer address data is missing or the carrier call
// keeps failing. Advance re-enters the per-method flow once the data arrives.
func (s *Service) MarkPendingData(ctx context.Context, orderID uint, reason string, actor models.Actor) (*models.Order, error) {
	if !actor.IsAdmin() {
		s.log().Warn("pending_data attempt rejected", "order_id", orderID, "actor_id", actor.ID)
		return nil, fmt.Errorf("%w: parking an order requires an administrator", ErrAuthorization)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: a reason is required", ErrValidation)
	}

	var entry models.StatusHistoryEntry

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrderTx(tx, orderID)
		if err != nil {
			return err
		}
		if order.OperationalStatus == models.StatusPendingData {
			return fmt.Errorf("%w: order %d is already parked", ErrConflict, orderID)
		}
		if statusRank(order.OperationalStatus) < paidRank {
			return fmt.Errorf("%w: only paid orders can be parked for missing data", ErrPrecondition)
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND operational_status = ?", orderID, order.OperationalStatus).
			Update("operational_status", models.StatusPendingData)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order %d changed concurrently", ErrConflict, orderID)
		}

		entry, err = appendHistory(tx, s.now(), orderID, order.OperationalStatus, models.StatusPendingData, "PENDING DATA: "+reason, actor.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.indexHistory(ctx, entry)
	s.publish(ctx, "order_parked_pending_data", orderID, actor, map[string]interface{}{"reason": reason})

	return s.GetOrder(ctx, orderID)
}

// Revert moves an order backward. Administrators may target any earlier
// state with a mandatory reason; other actors get exactly one step back and
// may never pull an approved payment out of its paid-or-later state.
func (s *Service) Revert(ctx context.Context, orderID uint, targetStatus, reason string, actor models.Actor) (*models.Order, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: revert reason is required", ErrValidation)
	}
	targetRank := statusRank(targetStatus)
	if targetRank < 0 {
		return nil, fmt.Errorf("%w: unknown target status %q", ErrValidation, targetStatus)
	}

	var entry models.StatusHistoryEntry

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrderTx(tx, orderID)
		if err != nil {
			return err
		}

		currentRank := statusRank(order.OperationalStatus)

		if !actor.IsAdmin() {
			if currentRank < 0 {
				s.log().Warn("revert attempt rejected", "order_id", orderID, "actor_id", actor.ID, "from", order.OperationalStatus)
				return fmt.Errorf("%w: only an administrator can revert from %q", ErrAuthorization, order.OperationalStatus)
			}
			if currentRank-targetRank != 1 {
				s.log().Warn("revert attempt rejected", "order_id", orderID, "actor_id", actor.ID, "target", targetStatus)
				return fmt.Errorf("%w: non-admin revert is limited to one step back", ErrAuthorization)
			}
			if order.PaymentReviewStatus == models.ReviewApproved && currentRank >= paidRank && targetRank < paidRank {
				s.log().Warn("revert attempt rejected", "order_id", orderID, "actor_id", actor.ID, "target", targetStatus)
				return fmt.Errorf("%w: approved payments can only be reverted by an administrator", ErrAuthorization)
			}
		} else if currentRank >= 0 && targetRank >= currentRank {
			return fmt.Errorf("%w: target status is not earlier than %q", ErrValidation, order.OperationalStatus)
		}

		updates := map[string]interface{}{"operational_status": targetStatus}
		if targetRank < paidRank {
			// Reverting out of paid/awaiting_response reopens collection.
			updates["cart_status"] = models.CartAwaitingPayment
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND operational_status = ?", orderID, order.OperationalStatus).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order %d changed concurrently", ErrConflict, orderID)
		}

		entry, err = appendHistory(tx, s.now(), orderID, order.OperationalStatus, targetStatus, "REVERT: "+reason, actor.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.indexHistory(ctx, entry)
	s.publish(ctx, "status_reverted", orderID, actor, map[string]interface{}{
		"old_status": entry.OldStatus,
		"new_status": targetStatus,
		"reason":     reason,
	})

	return s.GetOrder(ctx, orderID)
}
