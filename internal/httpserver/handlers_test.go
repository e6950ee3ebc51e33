package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vendalive/fulfillment/internal/db"
	"github.com/vendalive/fulfillment/internal/models"
	"github.com/vendalive/fulfillment/internal/service/fulfillment"
)

var testSecret = []byte("test-secret")

func newTestServer(t *testing.T) (*echo.Echo, *fulfillment.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	svc := fulfillment.New(gdb)

	e := echo.New()
	Register(e, &Deps{
		OrderHandler:   &OrderHandler{Service: svc},
		PackingHandler: &PackingHandler{Service: svc},
		JWTSecret:      testSecret,
	})
	return e, svc
}

func signToken(t *testing.T, userID uint, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  float64(userID),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func doJSONRequest(t *testing.T, e *echo.Echo, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func seedLiveEvent(t *testing.T, svc *fulfillment.Service) models.LiveEvent {
	t.Helper()
	event := models.LiveEvent{SellerID: 7, Title: "friday live", StartedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, svc.DB.Create(&event).Error)
	return event
}

func seedCatalogProduct(t *testing.T, svc *fulfillment.Service) models.Product {
	t.Helper()
	product := models.Product{Name: "cropped jeans", Price: 5000, Stock: 10}
	require.NoError(t, svc.DB.Create(&product).Error)
	return product
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()
	e, _ := newTestServer(t)

	rec := doJSONRequest(t, e, http.MethodGet, "/api/v1/orders/1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSONRequest(t, e, http.MethodGet, "/api/v1/orders/1", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthEndpointsOpen(t *testing.T) {
	t.Parallel()
	e, _ := newTestServer(t)

	rec := doJSONRequest(t, e, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSONRequest(t, e, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	t.Parallel()
	e, svc := newTestServer(t)

	event := seedLiveEvent(t, svc)
	product := seedCatalogProduct(t, svc)
	sellerToken := signToken(t, 7, models.RoleSeller)
	adminToken := signToken(t, 1, models.RoleAdmin)

	rec := doJSONRequest(t, e, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/orders", event.ID), sellerToken,
		map[string]interface{}{"customer_id": 42, "delivery_method": "courier"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	require.NotZero(t, order.ID)

	rec = doJSONRequest(t, e, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/items", order.ID), sellerToken,
		map[string]interface{}{"product_id": product.ID, "quantity": 2, "unit_price": 5000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, int64(10000), order.Total)

	// Advancing an unpaid order hits the precondition mapping.
	rec = doJSONRequest(t, e, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/advance", order.ID), sellerToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSONRequest(t, e, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/payment/manual", order.ID), sellerToken,
		map[string]interface{}{"method": "pix", "proof_url": "https://proofs.example/42.png"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, models.ReviewPending, order.PaymentReviewStatus)

	// Review actions live behind the admin group.
	approvePath := fmt.Sprintf("/api/v1/admin/orders/%d/payment/approve", order.ID)
	rec = doJSONRequest(t, e, http.MethodPost, approvePath, sellerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSONRequest(t, e, http.MethodPost, approvePath, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSONRequest(t, e, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/advance", order.ID), sellerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, models.StatusInTransit, order.OperationalStatus)

	rec = doJSONRequest(t, e, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d/history", order.ID), sellerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.StatusHistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.GreaterOrEqual(t, len(history), 3)
}

func TestValidationAndNotFoundMapping(t *testing.T) {
	t.Parallel()
	e, svc := newTestServer(t)

	event := seedLiveEvent(t, svc)
	token := signToken(t, 7, models.RoleSeller)

	rec := doJSONRequest(t, e, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/orders", event.ID), token,
		map[string]interface{}{"customer_id": 42, "delivery_method": "drone"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSONRequest(t, e, http.MethodGet, "/api/v1/orders/9999", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSONRequest(t, e, http.MethodGet, "/api/v1/orders/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPackingRoutes(t *testing.T) {
	t.Parallel()
	e, svc := newTestServer(t)

	event := seedLiveEvent(t, svc)
	product := seedCatalogProduct(t, svc)
	token := signToken(t, 7, models.RoleSeller)

	rec := doJSONRequest(t, e, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/orders", event.ID), token,
		map[string]interface{}{"customer_id": 42, "delivery_method": "pickup"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	rec = doJSONRequest(t, e, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/items", order.ID), token,
		map[string]interface{}{"product_id": product.ID, "quantity": 1, "unit_price": 5000})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSONRequest(t, e, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/bags/assign", event.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var assigned struct {
		Assigned int `json:"assigned"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assigned))
	assert.Equal(t, 1, assigned.Assigned)

	rec = doJSONRequest(t, e, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/packed", order.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bag struct {
		BagStatus string `json:"bag_status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bag))
	assert.Equal(t, models.BagPacked, bag.BagStatus)

	rec = doJSONRequest(t, e, http.MethodGet, fmt.Sprintf("/api/v1/events/%d/bags", event.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bags []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bags))
	require.Len(t, bags, 1)
	assert.Equal(t, models.BagPacked, bags[0].SeparationStatus)
}
