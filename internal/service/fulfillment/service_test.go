package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vendalive/fulfillment/internal/db"
	"github.com/vendalive/fulfillment/internal/models"
	"github.com/vendalive/fulfillment/internal/mykafka"
)

var (
	seller = models.Actor{ID: 7, Role: models.RoleSeller}
	admin  = models.Actor{ID: 1, Role: models.RoleAdmin}

	testBase = time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
)

type fakePublisher struct {
	mu     sync.Mutex
	events []mykafka.Envelope
}

func (f *fakePublisher) PublishEvent(_ context.Context, _, _ string, event interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if env, ok := event.(mykafka.Envelope); ok {
		f.events = append(f.events, env)
	}
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestService(t *testing.T) (*Service, *fakePublisher) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	pub := &fakePublisher{}
	svc := New(gdb)
	svc.Events = pub
	svc.Now = func() time.Time { return testBase }
	return svc, pub
}

func seedEvent(t *testing.T, svc *Service) models.LiveEvent {
	t.Helper()
	event := models.LiveEvent{SellerID: seller.ID, Title: "friday live", StartedAt: testBase.Add(-2 * time.Hour)}
	require.NoError(t, svc.DB.Create(&event).Error)
	return event
}

func seedProduct(t *testing.T, svc *Service, price, stock int64) models.Product {
	t.Helper()
	product := models.Product{Name: "cropped jeans", Price: price, Stock: stock}
	require.NoError(t, svc.DB.Create(&product).Error)
	return product
}

// openOrder creates an order with one reserved line of the given quantity.
func openOrder(t *testing.T, svc *Service, method string, quantity int, unitPrice int64) (*models.Order, models.Product) {
	t.Helper()
	ctx := context.Background()

	event := seedEvent(t, svc)
	product := seedProduct(t, svc, unitPrice, 100)

	order, err := svc.CreateOrder(ctx, event.ID, 42, method, seller)
	require.NoError(t, err)

	order, err = svc.AddItem(ctx, order.ID, AddItemInput{
		ProductID: product.ID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	}, seller)
	require.NoError(t, err)

	return order, product
}

func productStock(t *testing.T, svc *Service, productID uint) int64 {
	t.Helper()
	var p models.Product
	require.NoError(t, svc.DB.First(&p, productID).Error)
	return p.Stock
}

func reloadOrder(t *testing.T, svc *Service, orderID uint) *models.Order {
	t.Helper()
	order, err := svc.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	return order
}

func reloadItem(t *testing.T, svc *Service, itemID uint) *models.OrderItem {
	t.Helper()
	var item models.OrderItem
	require.NoError(t, svc.DB.First(&item, itemID).Error)
	return &item
}
