package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vendalive/fulfillment/internal/models"
)

// Urgency thresholds. Elapsed time beyond these flags the order on the
// seller's follow-up board.
const (
	urgentAwaitingPayment = 24 * time.Hour
	urgentAfterCharge     = 24 * time.Hour
	urgentPaidStalled     = 12 * time.Hour
	urgentLabelStalled    = 24 * time.Hour
	urgentInTransit       = 8 * time.Hour
)

// RecordCharge logs one outreach attempt to a non-paying customer and moves
// the order to awaiting_response unconditionally.
func (s *Service) RecordCharge(ctx context.Context, orderID uint, channel string, actor models.Actor) (*models.Order, error) {
	if strings.TrimSpace(channel) == "" {
		return nil, fmt.Errorf("%w: charge channel is required", ErrValidation)
	}

	now := s.now()
	var entry models.StatusHistoryEntry

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrderTx(tx, orderID)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Order{}).
			Where("id = ?", orderID).
			Updates(map[string]interface{}{
				"charge_attempts":    gorm.Expr("charge_attempts + 1"),
				"last_charge_at":     now,
				"charge_channel":     channel,
				"charged_by_actor":   actor.ID,
				"operational_status": models.StatusAwaitingResponse,
			}).Error; err != nil {
			return err
		}

		if err := tx.Create(&models.ChargeLogEntry{
			OrderID:   orderID,
			Channel:   channel,
			ActorID:   actor.ID,
			CreatedAt: now,
		}).Error; err != nil {
			return err
		}

		entry, err = appendHistory(tx, now, orderID, order.OperationalStatus, models.StatusAwaitingResponse, "charge recorded via "+channel, actor.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.indexHistory(ctx, entry)
	s.publish(ctx, "charge_recorded", orderID, actor, map[string]interface{}{"channel": channel})

	return s.GetOrder(ctx, orderID)
}

// UrgencyReport is recomputed from the wall clock on every read; nothing is
// stored.
type UrgencyReport struct {
	IsUrgent     bool    `json:"is_urgent"`
	Reason       string  `json:"reason,omitempty"`
	HoursOverdue float64 `json:"hours_overdue,omitempty"`
}

// ComputeUrgency is a pure function of the order row and now.
func ComputeUrgency(o *models.Order, now time.Time) UrgencyReport {
	check := func(since *time.Time, threshold time.Duration, reason string) UrgencyReport {
		if since == nil {
			return UrgencyReport{}
		}
		elapsed := now.Sub(*since)
		if elapsed <= threshold {
			return UrgencyReport{}
		}
		return UrgencyReport{
			IsUrgent:     true,
			Reason:       reason,
			HoursOverdue: (elapsed - threshold).Hours(),
		}
	}

	switch o.OperationalStatus {
	case models.StatusAwaitingPayment:
		if o.LastChargeAt == nil {
			created := o.CreatedAt
			return check(&created, urgentAwaitingPayment, "awaiting payment with no charge attempt for over 24h")
		}
		return check(o.LastChargeAt, urgentAfterCharge, "no payment for over 24h after last charge")

	case models.StatusAwaitingResponse:
		since := o.LastChargeAt
		if since == nil {
			created := o.CreatedAt
			since = &created
		}
		return check(since, urgentAfterCharge, "no customer response for over 24h")

	case models.StatusPaid:
		return check(o.PaidAt, urgentPaidStalled, "paid for over 12h without fulfillment progress")

	case models.StatusLabelGenerated:
		return check(o.LabelPrintedAt, urgentLabelStalled, "label printed over 24h ago without posting")

	case models.StatusInTransit:
		return check(o.PaidAt, urgentInTransit, "in transit for over 8h since payment")
	}

	return UrgencyReport{}
}

// Urgency loads the order and evaluates ComputeUrgency against the clock.
func (s *Service) Urgency(ctx context.Context, orderID uint) (UrgencyReport, error) {
	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return UrgencyReport{}, mapRepoErr(err)
	}
	return ComputeUrgency(order, s.now()), nil
}
