package fulfillment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendalive/fulfillment/internal/models"
)

// packedBag builds a paid, bagged, fully packed order with one line of the
// given quantity and returns it reloaded.
func packedBag(t *testing.T, svc *Service, method string, quantity int) *models.Order {
	t.Helper()
	ctx := context.Background()

	event := seedEvent(t, svc)
	product := seedProduct(t, svc, 4000, 100)

	order, err := svc.CreateOrder(ctx, event.ID, 42, method, seller)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID, Quantity: quantity, UnitPrice: 4000}, seller)
	require.NoError(t, err)
	_, err = svc.ConfirmAutomatic(ctx, order.ID, "credit_card", seller)
	require.NoError(t, err)
	_, err = svc.AssignBagNumbers(ctx, event.ID, seller)
	require.NoError(t, err)
	status, err := svc.MarkBagPacked(ctx, order.ID, seller)
	require.NoError(t, err)
	require.Equal(t, models.BagPacked, status)

	return reloadOrder(t, svc, order.ID)
}

func TestCancelItemBeforeCommitment(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	order, _ := openOrder(t, svc, models.DeliveryPickup, 2, 4000)
	require.Equal(t, int64(8000), order.Total)

	req, err := svc.CancelItem(ctx, order.Items[0].ID, seller)
	require.NoError(t, err)
	// Nothing was packed: the line just drops, no attention needed.
	assert.Nil(t, req)

	item := reloadItem(t, svc, order.Items[0].ID)
	assert.Equal(t, models.ItemCancelled, item.ItemStatus)
	assert.Equal(t, models.SepCancelled, item.SeparationStatus)
	assert.Zero(t, item.PendingRemovalCount)

	order = reloadOrder(t, svc, order.ID)
	assert.Equal(t, int64(0), order.Total)

	_, err = svc.CancelItem(ctx, item.ID, seller)
	require.ErrorIs(t, err, ErrConflict)
}

func TestCancelItemOnPackedBag(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	order := packedBag(t, svc, models.DeliveryPickup, 2)
	itemID := order.Items[0].ID

	req, err := svc.CancelItem(ctx, itemID, seller)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, models.AttentionCancellation, req.Type)
	assert.Equal(t, 2, req.Quantity)
	assert.Equal(t, *order.BagNumber, req.OriginBagNumber)

	item := reloadItem(t, svc, itemID)
	assert.Equal(t, models.ItemCancelled, item.ItemStatus)
	assert.Equal(t, 2, item.PendingRemovalCount)
	// The packed flag stays until an operator pulls the units.
	assert.Equal(t, models.SepPacked, item.SeparationStatus)

	order = reloadOrder(t, svc, order.ID)
	assert.Equal(t, models.BagAttention, order.SeparationStatus)
	// Paid totals are frozen; cancellation after payment is a refund
	// problem, not an arithmetic one.
	assert.Equal(t, int64(8000), order.Total)

	status, err := svc.ConfirmRemoved(ctx, itemID, 0, seller)
	require.NoError(t, err)
	assert.Equal(t, models.BagPacked, status)

	item = reloadItem(t, svc, itemID)
	assert.Equal(t, models.SepRemovalConfirmed, item.SeparationStatus)
	assert.Equal(t, 2, item.RemovalConfirmedCount)

	fresh, err := svc.Repo.GetRequirement(ctx, req.ID)
	require.NoError(t, err)
	assert.NotNil(t, fresh.ResolvedAt)
	assert.True(t, fresh.RemovedFromOriginConfirmed)
}

// Cancelling every line of a bag that was only partially packed must leave
// it in attention, not cancelled: the packed units are still physically
// inside and an operator has to pull them out first.
func TestCancelAllLinesAfterPartialPacking(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	event := seedEvent(t, svc)
	product := seedProduct(t, svc, 4000, 100)

	order, err := svc.CreateOrder(ctx, event.ID, 42, models.DeliveryPickup, seller)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID, Quantity: 2, UnitPrice: 4000}, seller)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, order.ID, AddItemInput{ProductID: product.ID, Quantity: 1, UnitPrice: 4000}, seller)
	require.NoError(t, err)
	_, err = svc.ConfirmAutomatic(ctx, order.ID, "credit_card", seller)
	require.NoError(t, err)
	_, err = svc.AssignBagNumbers(ctx, event.ID, seller)
	require.NoError(t, err)
	order = reloadOrder(t, svc, order.ID)

	status, err := svc.MarkItemPacked(ctx, order.Items[0].ID, seller)
	require.NoError(t, err)
	require.Equal(t, models.BagPacking, status)
	require.False(t, reloadOrder(t, svc, order.ID).Committed)

	// The packed line needs physical removal, so a requirement opens.
	req, err := svc.CancelItem(ctx, order.Items[0].ID, seller)
	require.NoError(t, err)
	require.NotNil(t, req)

	// The untouched line just drops; the bag is now empty on paper only.
	dropped, err := svc.CancelItem(ctx, order.Items[1].ID, seller)
	require.NoError(t, err)
	assert.Nil(t, dropped)

	order = reloadOrder(t, svc, order.ID)
	assert.Equal(t, models.BagAttention, order.SeparationStatus)

	item := reloadItem(t, svc, order.Items[0].ID)
	assert.Less(t, item.RemovalConfirmedCount, item.PendingRemovalCount)

	// Once the units are out, the empty uncommitted bag may cancel.
	status, err = svc.ConfirmRemoved(ctx, order.Items[0].ID, 0, seller)
	require.NoError(t, err)
	assert.Equal(t, models.BagCancelled, status)
}

func TestReduceQuantityOnPackedBag(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	order := packedBag(t, svc, models.DeliveryPickup, 3)
	itemID := order.Items[0].ID

	_, err := svc.ReduceQuantity(ctx, itemID, 0, seller)
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.ReduceQuantity(ctx, itemID, 3, seller)
	require.ErrorIs(t, err, ErrValidation)

	req, err := svc.ReduceQuantity(ctx, itemID, 1, seller)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, models.AttentionQuantityReduction, req.Type)
	assert.Equal(t, 2, req.Quantity)

	item := reloadItem(t, svc, itemID)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, 2, item.PendingRemovalCount)

	order = reloadOrder(t, svc, order.ID)
	assert.Equal(t, models.BagAttention, order.SeparationStatus)

	// Partial confirmation keeps the bag blocked.
	status, err := svc.ConfirmRemoved(ctx, itemID, 1, seller)
	require.NoError(t, err)
	assert.Equal(t, models.BagAttention, status)

	_, err = svc.ConfirmRemoved(ctx, itemID, 5, seller)
	require.ErrorIs(t, err, ErrValidation)

	status, err = svc.ConfirmRemoved(ctx, itemID, 1, seller)
	require.NoError(t, err)
	assert.Equal(t, models.BagPacked, status)

	_, err = svc.ConfirmRemoved(ctx, itemID, 1, seller)
	require.ErrorIs(t, err, ErrConflict)
}

func TestReduceQuantityBeforeCommitment(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	order, _ := openOrder(t, svc, models.DeliveryPickup, 3, 4000)

	req, err := svc.ReduceQuantity(ctx, order.Items[0].ID, 1, seller)
	require.NoError(t, err)
	assert.Nil(t, req)

	order = reloadOrder(t, svc, order.ID)
	assert.Equal(t, int64(4000), order.Total)
}

func TestReallocationForcesLabelReprint(t *testing.T) {
	t.Parallel()
	svc, pub := newTestService(t)
	ctx := context.Background()

	origin := packedBag(t, svc, models.DeliveryPostal, 2)
	itemID := origin.Items[0].ID

	// Another customer's bag in the same event.
	dest, err := svc.CreateOrder(ctx, origin.EventID, 77, models.DeliveryPickup, seller)
	require.NoError(t, err)
	_, err = svc.AssignBagNumbers(ctx, origin.EventID, seller)
	require.NoError(t, err)
	dest = reloadOrder(t, svc, dest.ID)

	// Label the origin before the move so the reprint rule fires.
	_, err = svc.RecordLabel(ctx, origin.ID, "https://labels.example/7.pdf", "BR777", seller)
	require.NoError(t, err)

	_, err = svc.RequestReallocation(ctx, itemID, 0, dest.ID, "", seller)
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.RequestReallocation(ctx, itemID, 3, dest.ID, "", seller)
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.RequestReallocation(ctx, itemID, 1, origin.ID, "", seller)
	require.ErrorIs(t, err, ErrValidation)

	req, err := svc.RequestReallocation(ctx, itemID, 1, dest.ID, "@maria", seller)
	require.NoError(t, err)
	require.NotNil(t, req.DestinationBagID)
	assert.Equal(t, dest.ID, *req.DestinationBagID)
	assert.Equal(t, *dest.BagNumber, *req.DestinationBagNumber)

	origin = reloadOrder(t, svc, origin.ID)
	assert.Equal(t, models.BagAttention, origin.SeparationStatus)

	// Both physical confirmations are mandatory when a destination exists.
	_, err = svc.ResolveReallocation(ctx, req.ID, true, false, seller)
	require.ErrorIs(t, err, ErrPrecondition)
	_, err = svc.ResolveReallocation(ctx, req.ID, false, true, seller)
	require.ErrorIs(t, err, ErrPrecondition)

	resolved, err := svc.ResolveReallocation(ctx, req.ID, true, true, seller)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = svc.ResolveReallocation(ctx, req.ID, true, true, seller)
	require.ErrorIs(t, err, ErrConflict)

	item := reloadItem(t, svc, itemID)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, models.SepRemovalConfirmed, item.SeparationStatus)

	origin = reloadOrder(t, svc, origin.ID)
	assert.Equal(t, models.BagPacked, origin.SeparationStatus)
	assert.True(t, origin.NeedsLabelReprint)

	dest = reloadOrder(t, svc, dest.ID)
	require.Len(t, dest.Items, 1)
	assert.Equal(t, 1, dest.Items[0].Quantity)
	assert.Equal(t, models.SepPending, dest.Items[0].SeparationStatus)

	// The stale label blocks posting until it is reprinted.
	_, err = svc.Advance(ctx, origin.ID, seller) // prep_shipping
	require.NoError(t, err)
	_, err = svc.Advance(ctx, origin.ID, seller) // label_generated
	require.NoError(t, err)
	_, err = svc.Advance(ctx, origin.ID, seller)
	require.ErrorIs(t, err, ErrPrecondition)

	_, err = svc.RecordLabel(ctx, origin.ID, "https://labels.example/7-v2.pdf", "BR777", seller)
	require.NoError(t, err)
	got, err := svc.Advance(ctx, origin.ID, seller)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPosted, got.OperationalStatus)

	assert.Contains(t, pub.types(), "reallocation_requested")
	assert.Contains(t, pub.types(), "reallocation_resolved")
}

func TestReallocationToHandleOnly(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	origin := packedBag(t, svc, models.DeliveryPickup, 1)
	itemID := origin.Items[0].ID

	req, err := svc.RequestReallocation(ctx, itemID, 1, 0, "@joana", seller)
	require.NoError(t, err)
	assert.Nil(t, req.DestinationBagID)
	assert.Equal(t, "@joana", req.DestinationHandle)

	// No destination bag yet, so only the removal side is confirmable.
	resolved, err := svc.ResolveReallocation(ctx, req.ID, true, false, seller)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)

	item := reloadItem(t, svc, itemID)
	// The whole line moved out.
	assert.Equal(t, models.ItemRemoved, item.ItemStatus)
	assert.Equal(t, models.SepRemovalConfirmed, item.SeparationStatus)
}

func TestResolveReallocationRejectsOtherTypes(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	order := packedBag(t, svc, models.DeliveryPickup, 1)
	req, err := svc.CancelItem(ctx, order.Items[0].ID, seller)
	require.NoError(t, err)
	require.NotNil(t, req)

	_, err = svc.ResolveReallocation(ctx, req.ID, true, true, seller)
	require.ErrorIs(t, err, ErrPrecondition)
}
