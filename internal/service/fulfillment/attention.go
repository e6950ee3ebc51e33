package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vendalive/fulfillment/internal/models"
)

func bagNumberOf(o *models.Order) int {
	if o.BagNumber != nil {
		return *o.BagNumber
	}
	return 0
}

// isCommittedBag reports whether physical packing state must be protected:
// the bag was packed or labeled, or this particular line was already packed.
func isCommittedBag(o *models.Order, item *models.OrderItem) bool {
	return o.Committed || o.LabelPrintedAt != nil || item.SeparationStatus == models.SepPacked
}

func createRequirement(tx *gorm.DB, at models.Order, item *models.OrderItem, typ string, qty int, dest *models.Order, destHandle string) (*models.AttentionRequirement, error) {
	req := models.AttentionRequirement{
		Type:            typ,
		ItemID:          item.ID,
		Quantity:        qty,
		OriginBagID:     at.ID,
		OriginBagNumber: bagNumberOf(&at),
	}
	if dest != nil {
		req.DestinationBagID = &dest.ID
		n := bagNumberOf(dest)
		req.DestinationBagNumber = &n
	}
	req.DestinationHandle = destHandle

	if err := tx.Create(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// CancelItem cancels a line. On an uncommitted bag the line just drops out;
// on a committed bag the units have to be physically pulled, so an attention
// requirement opens and blocks the bag until an operator confirms removal.
func (s *Service) CancelItem(ctx context.Context, itemID uint, actor models.Actor) (*models.AttentionRequirement, error) {
	var (
		req     *models.AttentionRequirement
		orderID uint
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := loadItemTx(tx, itemID)
		if err != nil {
			return err
		}
		switch item.ItemStatus {
		case models.ItemCancelled, models.ItemRemoved, models.ItemExpired:
			return fmt.Errorf("%w: item %d is already %s", ErrConflict, itemID, item.ItemStatus)
		}

		order, err := loadOrderTx(tx, item.OrderID)
		if err != nil {
			return err
		}
		orderID = order.ID

		if isCommittedBag(order, item) {
			updates := map[string]interface{}{
				"item_status":           models.ItemCancelled,
				"pending_removal_count": gorm.Expr("pending_removal_count + ?", item.Quantity),
			}
			if err := tx.Model(&models.OrderItem{}).Where("id = ?", itemID).
				Updates(updates).Error; err != nil {
				return err
			}
			req, err = createRequirement(tx, *order, item, models.AttentionCancellation, item.Quantity, nil, "")
			if err != nil {
				return err
			}
		} else {
			if err := tx.Model(&models.OrderItem{}).Where("id = ?", itemID).
				Updates(map[string]interface{}{
					"item_status":       models.ItemCancelled,
					"separation_status": models.SepCancelled,
				}).Error; err != nil {
				return err
			}
		}

		if order.CartStatus != models.CartPaid {
			return recomputeTotals(tx, order.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{"item_id": itemID}
	if req != nil {
		payload["requirement_id"] = req.ID
		payload["requirement_type"] = req.Type
	}
	s.publish(ctx, "item_cancelled", orderID, actor, payload)

	return req, nil
}

// ReduceQuantity lowers a line's quantity. On a committed bag the removed
// units open a quantity_reduction requirement.
func (s *Service) ReduceQuantity(ctx context.Context, itemID uint, newQuantity int, actor models.Actor) (*models.AttentionRequirement, error) {
	if newQuantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must stay positive, cancel the item instead", ErrValidation)
	}

	var (
		req     *models.AttentionRequirement
		orderID uint
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := loadItemTx(tx, itemID)
		if err != nil {
			return err
		}
		if newQuantity >= item.Quantity {
			return fmt.Errorf("%w: new quantity %d does not reduce %d", ErrValidation, newQuantity, item.Quantity)
		}

		order, err := loadOrderTx(tx, item.OrderID)
		if err != nil {
			return err
		}
		orderID = order.ID
		delta := item.Quantity - newQuantity

		updates := map[string]interface{}{"quantity": newQuantity}
		if isCommittedBag(order, item) {
			updates["pending_removal_count"] = gorm.Expr("pending_removal_count + ?", delta)
		}
		if err := tx.Model(&models.OrderItem{}).Where("id = ?", itemID).
			Updates(updates).Error; err != nil {
			return err
		}

		if isCommittedBag(order, item) {
			req, err = createRequirement(tx, *order, item, models.AttentionQuantityReduction, delta, nil, "")
			if err != nil {
				return err
			}
		}

		if order.CartStatus != models.CartPaid {
			return recomputeTotals(tx, order.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "item_quantity_reduced", orderID, actor, map[string]interface{}{
		"item_id":      itemID,
		"new_quantity": newQuantity,
	})

	return req, nil
}

// RequestReallocation opens a reallocation requirement moving units of a
// packed line into another customer's bag (or to a handle when the
// destination bag does not exist yet).
func (s *Service) RequestReallocation(ctx context.Context, itemID uint, quantity int, destOrderID uint, destHandle string, actor models.Actor) (*models.AttentionRequirement, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: reallocation quantity must be positive", ErrValidation)
	}
	if destOrderID == 0 && destHandle == "" {
		return nil, fmt.Errorf("%w: reallocation needs a destination bag or handle", ErrValidation)
	}

	var (
		req     *models.AttentionRequirement
		orderID uint
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := loadItemTx(tx, itemID)
		if err != nil {
			return err
		}
		if quantity > item.Quantity {
			return fmt.Errorf("%w: cannot reallocate %d of %d units", ErrValidation, quantity, item.Quantity)
		}

		order, err := loadOrderTx(tx, item.OrderID)
		if err != nil {
			return err
		}
		orderID = order.ID

		var dest *models.Order
		if destOrderID != 0 {
			if destOrderID == order.ID {
				return fmt.Errorf("%w: destination bag equals origin", ErrValidation)
			}
			dest, err = loadOrderTx(tx, destOrderID)
			if err != nil {
				return err
			}
		}

		if err := tx.Model(&models.OrderItem{}).Where("id = ?", itemID).
			Update("pending_removal_count", gorm.Expr("pending_removal_count + ?", quantity)).Error; err != nil {
			return err
		}

		req, err = createRequirement(tx, *order, item, models.AttentionReallocation, quantity, dest, destHandle)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "reallocation_requested", orderID, actor, map[string]interface{}{
		"item_id":        itemID,
		"requirement_id": req.ID,
		"quantity":       quantity,
	})

	return req, nil
}

// ConfirmRemoved records physically removed units. When the confirmed count
// reaches the pending total the item flips to removal_confirmed, its
// non-reallocation requirements resolve, and the bag may leave attention.
func (s *Service) ConfirmRemoved(ctx context.Context, itemID uint, count int, actor models.Actor) (string, error) {
	var (
		bagStatus string
		orderID   uint
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := loadItemTx(tx, itemID)
		if err != nil {
			return err
		}
		orderID = item.OrderID

		remaining := item.PendingRemovalCount - item.RemovalConfirmedCount
		if remaining <= 0 {
			return fmt.Errorf("%w: item %d has no pending removal", ErrConflict, itemID)
		}
		if count <= 0 {
			count = remaining
		}
		if count > remaining {
			return fmt.Errorf("%w: confirming %d exceeds the %d units pending removal", ErrValidation, count, remaining)
		}

		confirmed := item.RemovalConfirmedCount + count
		updates := map[string]interface{}{"removal_confirmed_count": confirmed}
		complete := confirmed >= item.PendingRemovalCount
		if complete {
			updates["separation_status"] = models.SepRemovalConfirmed
		}
		if err := tx.Model(&models.OrderItem{}).Where("id = ?", itemID).
			Updates(updates).Error; err != nil {
			return err
		}

		if complete {
			if err := tx.Model(&models.AttentionRequirement{}).
				Where("item_id = ? AND resolved_at IS NULL AND type <> ?", itemID, models.AttentionReallocation).
				Updates(map[string]interface{}{
					"removed_from_origin_confirmed": true,
					"resolved_at":                   s.now(),
				}).Error; err != nil {
				return err
			}
		}

		bagStatus, err = refreshCommitment(tx, item.OrderID)
		return err
	})
	if err != nil {
		return "", err
	}

	s.publish(ctx, "removal_confirmed", orderID, actor, map[string]interface{}{
		"item_id":    itemID,
		"count":      count,
		"bag_status": bagStatus,
	})

	return bagStatus, nil
}

// ResolveReallocation closes a reallocation requirement. Removal from the
// origin and placement in the destination must both be confirmed; a label
// printed before the move forces a reprint because the physical contents no
// longer match it.
func (s *Service) ResolveReallocation(ctx context.Context, reqID uint, removedConfirmed, placedConfirmed bool, actor models.Actor) (*models.AttentionRequirement, error) {
	var (
		req     models.AttentionRequirement
		orderID uint
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, reqID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if req.Type != models.AttentionReallocation {
			return fmt.Errorf("%w: requirement %d is %s, use ConfirmRemoved", ErrPrecondition, reqID, req.Type)
		}
		if req.ResolvedAt != nil {
			return fmt.Errorf("%w: requirement %d is already resolved", ErrConflict, reqID)
		}

		if !removedConfirmed {
			return fmt.Errorf("%w: removal from the origin bag must be confirmed", ErrPrecondition)
		}
		if req.DestinationBagID != nil && !placedConfirmed {
			return fmt.Errorf("%w: placement in the destination bag must be confirmed", ErrPrecondition)
		}

		item, err := loadItemTx(tx, req.ItemID)
		if err != nil {
			return err
		}
		origin, err := loadOrderTx(tx, req.OriginBagID)
		if err != nil {
			return err
		}
		orderID = origin.ID

		now := s.now()
		if err := tx.Model(&models.AttentionRequirement{}).
			Where("id = ? AND resolved_at IS NULL", reqID).
			Updates(map[string]interface{}{
				"removed_from_origin_confirmed":   true,
				"placed_in_destination_confirmed": placedConfirmed,
				"resolved_at":                     now,
			}).Error; err != nil {
			return err
		}

		confirmed := item.RemovalConfirmedCount + req.Quantity
		itemUpdates := map[string]interface{}{"removal_confirmed_count": confirmed}
		if req.Quantity >= item.Quantity {
			itemUpdates["item_status"] = models.ItemRemoved
			if confirmed >= item.PendingRemovalCount {
				itemUpdates["separation_status"] = models.SepRemovalConfirmed
			}
		} else {
			itemUpdates["quantity"] = item.Quantity - req.Quantity
			if confirmed >= item.PendingRemovalCount {
				itemUpdates["separation_status"] = models.SepRemovalConfirmed
			}
		}
		if err := tx.Model(&models.OrderItem{}).Where("id = ?", req.ItemID).
			Updates(itemUpdates).Error; err != nil {
			return err
		}

		// The moved units become a pending line in the destination bag.
		if req.DestinationBagID != nil {
			destLine := models.OrderItem{
				OrderID:          *req.DestinationBagID,
				ProductID:        item.ProductID,
				Size:             item.Size,
				Color:            item.Color,
				Quantity:         req.Quantity,
				UnitPrice:        item.UnitPrice,
				ItemStatus:       item.ItemStatus,
				SeparationStatus: models.SepPending,
			}
			if destLine.ItemStatus == models.ItemRemoved {
				destLine.ItemStatus = models.ItemConfirmed
			}
			if err := tx.Create(&destLine).Error; err != nil {
				return err
			}
		}

		if origin.LabelPrintedAt != nil {
			if err := tx.Model(&models.Order{}).Where("id = ?", origin.ID).
				Update("needs_label_reprint", true).Error; err != nil {
				return err
			}
		}

		req.RemovedFromOriginConfirmed = true
		req.PlacedInDestinationConfirmed = placedConfirmed
		req.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "reallocation_resolved", orderID, actor, map[string]interface{}{
		"requirement_id": reqID,
		"item_id":        req.ItemID,
	})

	return &req, nil
}
