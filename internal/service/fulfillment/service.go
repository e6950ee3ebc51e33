package fulfillment

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/vendalive/fulfillment/internal/es"
	"github.com/vendalive/fulfillment/internal/models"
	"github.com/vendalive/fulfillment/internal/mykafka"
	"github.com/vendalive/fulfillment/internal/repo"

	rd "github.com/redis/go-redis/v9"
)

// Publisher is the change-notification stream consumed by dashboards.
type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event interface{}) error
}

// Service owns the order fulfillment pipeline: intake, payment confirmation
// and review, idempotent stock effects, charge tracking, the status machine,
// and the separation/attention subsystem.
type Service struct {
	DB     *gorm.DB
	Repo   *repo.GormRepo
	Events Publisher
	Audit  *es.AuditIndexer
	RDB    *rd.Client
	Log    *slog.Logger
	Now    func() time.Time
}

func New(db *gorm.DB) *Service {
	return &Service{
		DB:   db,
		Repo: &repo.GormRepo{DB: db},
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// publish is best-effort: a failed event write is logged, never surfaced to
// the mutation that produced it.
func (s *Service) publish(ctx context.Context, typ string, orderID uint, actor models.Actor, payload interface{}) {
	if s.Events == nil {
		return
	}
	env := mykafka.Envelope{
		Type:    typ,
		OrderID: orderID,
		ActorID: actor.ID,
		At:      s.now(),
		Payload: payload,
	}
	key := strconv.FormatUint(uint64(orderID), 10)
	if err := s.Events.PublishEvent(ctx, mykafka.TopicFulfillmentEvents, key, env); err != nil {
		s.log().Error("event publish failed", "type", typ, "order_id", orderID, "error", err)
	}
}

// appendHistory writes the append-only audit entry inside the caller's
// transaction. History rows are never updated or deleted.
func appendHistory(tx *gorm.DB, at time.Time, orderID uint, oldStatus, newStatus, note string, actorID uint) (models.StatusHistoryEntry, error) {
	entry := models.StatusHistoryEntry{
		OrderID:   orderID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Note:      note,
		ActorID:   actorID,
		CreatedAt: at,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return entry, err
	}
	return entry, nil
}

func (s *Service) indexHistory(ctx context.Context, entries ...models.StatusHistoryEntry) {
	if s.Audit == nil {
		return
	}
	for _, e := range entries {
		s.Audit.IndexHistoryEntry(ctx, e)
	}
}

// recomputeTotals refreshes the money invariant total = subtotal - discounts
// + shipping from the live (non-cancelled) product lines. Callers only invoke
// it pre-payment; totals freeze once an order is paid.
func recomputeTotals(tx *gorm.DB, orderID uint) error {
	var subtotal int64
	err := tx.Model(&models.OrderItem{}).
		Where("order_id = ? AND item_status IN ?", orderID, []string{models.ItemReserved, models.ItemConfirmed}).
		Select("COALESCE(SUM(quantity * unit_price), 0)").
		Scan(&subtotal).Error
	if err != nil {
		return err
	}
	return tx.Model(&models.Order{}).Where("id = ?", orderID).Updates(map[string]interface{}{
		"subtotal": subtotal,
		"total":    gorm.Expr("? - discounts + shipping", subtotal),
	}).Error
}

func mapRepoErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func loadOrderTx(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	err := tx.Preload("Items").Preload("Gifts").First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func loadItemTx(tx *gorm.DB, itemID uint) (*models.OrderItem, error) {
	var item models.OrderItem
	err := tx.First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
