package fulfillment

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/vendalive/fulfillment/internal/models"
)

// Gateway-settled methods confirm without proof; everything a customer pays
// by hand must carry a proof URL and passes through admin review.
var (
	automaticMethods = map[string]bool{
		"credit_card":    true,
		"pix_gateway":    true,
		"boleto_gateway": true,
	}
	manualMethods = map[string]bool{
		"pix":           true,
		"cash":          true,
		"bank_transfer": true,
	}
)

// ConfirmAutomatic marks a gateway-settled payment. Items flip to confirmed
// before the order row flips to paid: consumers reacting to "order became
// paid" must find the items already consistent.
func (s *Service) ConfirmAutomatic(ctx context.Context, orderID uint, method string, actor models.Actor) (*models.Order, error) {
	if manualMethods[method] {
		return nil, fmt.Errorf("%w: method %q is manual and requires proof", ErrValidation, method)
	}
	if !automaticMethods[method] {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, method)
	}
	return s.confirm(ctx, orderID, method, "", "", models.ReviewApproved, actor)
}

// ConfirmManual records a customer-provided payment with proof. Review gates
// fulfillment progress only: inventory still decrements immediately.
func (s *Service) ConfirmManual(ctx context.Context, orderID uint, method, proofURL, notes string, actor models.Actor) (*models.Order, error) {
	if strings.TrimSpace(proofURL) == "" {
		return nil, fmt.Errorf("%w: manual payment requires a proof url", ErrValidation)
	}
	if !manualMethods[method] {
		return nil, fmt.Errorf("%w: method %q is not accepted for manual payment", ErrValidation, method)
	}
	return s.confirm(ctx, orderID, method, proofURL, notes, models.ReviewPending, actor)
}

func (s *Service) confirm(ctx context.Context, orderID uint, method, proofURL, notes, reviewStatus string, actor models.Actor) (*models.Order, error) {
	now := s.now()
	var entry models.StatusHistoryEntry

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrderTx(tx, orderID)
		if err != nil {
			return err
		}
		if order.CartStatus == models.CartPaid {
			return fmt.Errorf("%w: order %d is already paid", ErrConflict, orderID)
		}
		if order.CartStatus == models.CartCancelled {
			return fmt.Errorf("%w: cancelled orders cannot be paid", ErrPrecondition)
		}

		// Items first, order row second. The ordering is load-bearing.
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND item_status = ?", orderID, models.ItemReserved).
			Update("item_status", models.ItemConfirmed).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"cart_status":           models.CartPaid,
			"operational_status":    models.StatusPaid,
			"payment_review_status": reviewStatus,
			"paid_method":           method,
			"paid_at":               now,
			"paid_by_actor":         actor.ID,
		}
		if proofURL != "" {
			updates["proof_url"] = proofURL
		}
		if reviewStatus == models.ReviewApproved {
			updates["validated_at"] = now
			updates["validated_by_actor"] = actor.ID
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND cart_status <> ?", orderID, models.CartPaid).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order %d was paid concurrently", ErrConflict, orderID)
		}

		note := "payment confirmed via " + method
		if notes != "" {
			note += ": " + notes
		}
		entry, err = appendHistory(tx, now, orderID, order.OperationalStatus, models.StatusPaid, note, actor.ID)
		if err != nil {
			return err
		}

		_, err = applyPaidEffectsTx(tx, orderID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.markAppliedGuard(ctx, orderID)
	s.indexHistory(ctx, entry)
	s.publish(ctx, "payment_confirmed", orderID, actor, map[string]interface{}{
		"method":        method,
		"review_status": reviewStatus,
	})

	return s.GetOrder(ctx, orderID)
}

// Approve closes a manual payment's review. The stock applier is invoked
// again on purpose; it is idempotent.
func (s *Service) Approve(ctx context.Context, orderID uint, actor models.Actor) (*models.Order, error) {
	if !actor.IsAdmin() {
		s.log().Warn("approve attempt rejected", "order_id", orderID, "actor_id", actor.ID)
		return nil, fmt.Errorf("%w: payment review requires an administrator", ErrAuthorization)
	}

	now := s.now()
	var entry models.StatusHistoryEntry

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrderTx(tx, orderID)
		if err != nil {
			return err
		}
		if order.PaymentReviewStatus != models.ReviewPending {
			return fmt.Errorf("%w: order %d has no payment awaiting review", ErrConflict, orderID)
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_review_status = ?", orderID, models.ReviewPending).
			Updates(map[string]interface{}{
				"payment_review_status": models.ReviewApproved,
				"validated_at":          now,
				"validated_by_actor":    actor.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order %d was reviewed concurrently", ErrConflict, orderID)
		}

		entry, err = appendHistory(tx, now, orderID, order.OperationalStatus, order.OperationalStatus, "payment review approved", actor.ID)
		if err != nil {
			return err
		}

		_, err = applyPaidEffectsTx(tx, orderID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.markAppliedGuard(ctx, orderID)
	s.indexHistory(ctx, entry)
	s.publish(ctx, "payment_review_approved", orderID, actor, nil)

	return s.GetOrder(ctx, orderID)
}

// Reject sends the order back to collection. The proof stays on the row for
// audit; confirmed items return to reserved so the seller can retry.
func (s *Service) Reject(ctx context.Context, orderID uint, reason string, actor models.Actor) (*models.Order, error) {
	if !actor.IsAdmin() {
		s.log().Warn("reject attempt rejected", "order_id", orderID, "actor_id", actor.ID)
		return nil, fmt.Errorf("%w: payment review requires an administrator", ErrAuthorization)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	now := s.now()
	var entry models.StatusHistoryEntry

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrderTx(tx, orderID)
		if err != nil {
			return err
		}
		if order.PaymentReviewStatus != models.ReviewPending {
			return fmt.Errorf("%w: order %d has no payment awaiting review", ErrConflict, orderID)
		}

		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND item_status = ?", orderID, models.ItemConfirmed).
			Update("item_status", models.ItemReserved).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_review_status = ?", orderID, models.ReviewPending).
			Updates(map[string]interface{}{
				"payment_review_status": models.ReviewRejected,
				"rejection_reason":      reason,
				"cart_status":           models.CartAwaitingPayment,
				"operational_status":    models.StatusAwaitingResponse,
				"validated_at":          now,
				"validated_by_actor":    actor.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order %d was reviewed concurrently", ErrConflict, orderID)
		}

		entry, err = appendHistory(tx, now, orderID, order.OperationalStatus, models.StatusAwaitingResponse, "payment rejected: "+reason, actor.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.indexHistory(ctx, entry)
	s.publish(ctx, "payment_review_rejected", orderID, actor, map[string]interface{}{"reason": reason})

	return s.GetOrder(ctx, orderID)
}
