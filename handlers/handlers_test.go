package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shop-svc/config"
	"shop-svc/database"
	"shop-svc/database/memory"
	"shop-svc/models"
	"shop-svc/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type testServer struct {
	router     *gin.Engine
	store      *database.Store
	logger     *zap.Logger
	auth       *service.AuthService
	orders     *service.OrderService
	userToken  string
	userID     string
	otherToken string
	adminToken string
}

func setupTestServer(t *testing.T, development bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	store := memory.NewStore()
	auth := service.NewAuthService(store.Users, config.JWTConfig{Secret: "test-secret", TTL: time.Hour}, logger)
	orders := service.NewOrderService(store, logger)

	router := NewRouter(RouterConfig{
		Logger:      logger,
		Env:         "test",
		Port:        "5001",
		Development: development,
		Auth:        auth,
		Orders:      orders,
		Products:    store.Products,
	})

	ts := &testServer{router: router, store: store, logger: logger, auth: auth, orders: orders}

	ctx := context.Background()
	user, err := auth.Register(ctx, models.RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Failed to register user: %v", err)
	}
	ts.userToken = user.Token
	ts.userID = user.User.ID.Hex()

	other, err := auth.Register(ctx, models.RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Failed to register user: %v", err)
	}
	ts.otherToken = other.Token

	if err := auth.EnsureAdmin(ctx, config.AdminConfig{Name: "Admin", Email: "admin@example.com", Password: "adminpass"}); err != nil {
		t.Fatalf("Failed to create admin: %v", err)
	}
	admin, err := auth.Login(ctx, models.LoginRequest{Email: "admin@example.com", Password: "adminpass"})
	if err != nil {
		t.Fatalf("Failed to log in admin: %v", err)
	}
	ts.adminToken = admin.Token

	return ts
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) createProduct(t *testing.T, name string, price float64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:        name,
		Description: name + " description",
		Price:       price,
		Category:    "kitchen",
		Image:       "https://img.example.com/" + name,
		Stock:       stock,
		CreatedAt:   time.Now(),
	}
	if err := ts.store.Products.Create(context.Background(), product); err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}
	return product
}

func (ts *testServer) stock(t *testing.T, id primitive.ObjectID) int {
	t.Helper()
	product, err := ts.store.Products.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to load product: %v", err)
	}
	return product.Stock
}

func orderBody(items ...gin.H) gin.H {
	return gin.H{
		"items": items,
		"shippingAddress": gin.H{
			"street":  "1 Main St",
			"city":    "Springfield",
			"state":   "IL",
			"zipCode": "62701",
			"country": "US",
		},
		"paymentMethod": "card",
	}
}

func item(product *models.Product, quantity int) gin.H {
	return gin.H{"product": product.ID.Hex(), "quantity": quantity}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %s: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t, false)

	w := ts.do("GET", "/api/health", "", nil)
	expectStatus(t, w, http.StatusOK)

	var body map[string]string
	decode(t, w, &body)
	if body["status"] != "ok" || body["environment"] != "test" || body["database"] != "memory" {
		t.Errorf("Unexpected health body: %v", body)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("no reachable servers") }

func TestHealthCheck_StoreDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/health", NewHealthHandler(failingPinger{}, "production", "5001").HealthCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	ts := setupTestServer(t, false)

	w := ts.do("POST", "/api/auth/register", "", gin.H{"name": "Carol", "email": "carol@example.com", "password": "secret1"})
	expectStatus(t, w, http.StatusCreated)

	var registered map[string]any
	decode(t, w, &registered)
	user := registered["user"].(map[string]any)
	if _, leaked := user["password"]; leaked {
		t.Errorf("Password hash must not be serialized")
	}

	w = ts.do("POST", "/api/auth/register", "", gin.H{"name": "Carol", "email": "carol@example.com", "password": "secret1"})
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do("POST", "/api/auth/register", "", gin.H{"name": "Dan", "email": "dan@example.com", "password": "123"})
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do("POST", "/api/auth/login", "", gin.H{"email": "carol@example.com", "password": "wrong"})
	expectStatus(t, w, http.StatusUnauthorized)

	w = ts.do("POST", "/api/auth/login", "", gin.H{"email": "carol@example.com", "password": "secret1"})
	expectStatus(t, w, http.StatusOK)

	var loggedIn models.AuthResponse
	decode(t, w, &loggedIn)

	w = ts.do("GET", "/api/auth/me", loggedIn.Token, nil)
	expectStatus(t, w, http.StatusOK)

	w = ts.do("GET", "/api/auth/me", "", nil)
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestProducts_PublicReadsAndAdminWrites(t *testing.T) {
	ts := setupTestServer(t, false)
	body := gin.H{
		"name":        "Mug",
		"description": "A mug",
		"price":       12.5,
		"category":    "kitchen",
		"image":       "https://img.example.com/mug",
		"stock":       10,
		"featured":    true,
	}

	w := ts.do("POST", "/api/products", ts.userToken, body)
	expectStatus(t, w, http.StatusForbidden)

	w = ts.do("POST", "/api/products", ts.adminToken, body)
	expectStatus(t, w, http.StatusCreated)

	var created models.Product
	decode(t, w, &created)

	w = ts.do("GET", "/api/products/"+created.ID.Hex(), "", nil)
	expectStatus(t, w, http.StatusOK)

	w = ts.do("GET", "/api/products?featured=true", "", nil)
	expectStatus(t, w, http.StatusOK)
	var featured []models.Product
	decode(t, w, &featured)
	if len(featured) != 1 {
		t.Errorf("Expected 1 featured product, got %d", len(featured))
	}

	w = ts.do("GET", "/api/products?category=garden", "", nil)
	expectStatus(t, w, http.StatusOK)
	var garden []models.Product
	decode(t, w, &garden)
	if len(garden) != 0 {
		t.Errorf("Expected no garden products, got %d", len(garden))
	}

	w = ts.do("GET", "/api/products?featured=maybe", "", nil)
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do("PUT", "/api/products/"+created.ID.Hex(), ts.adminToken, gin.H{"price": 15})
	expectStatus(t, w, http.StatusOK)
	var updated models.Product
	decode(t, w, &updated)
	if updated.Price != 15 || updated.Name != "Mug" {
		t.Errorf("Unexpected updated product: %+v", updated)
	}

	w = ts.do("PUT", "/api/products/"+created.ID.Hex(), ts.adminToken, gin.H{"stock": -1})
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do("DELETE", "/api/products/"+created.ID.Hex(), ts.adminToken, nil)
	expectStatus(t, w, http.StatusOK)

	w = ts.do("GET", "/api/products/"+created.ID.Hex(), "", nil)
	expectStatus(t, w, http.StatusNotFound)

	w = ts.do("GET", "/api/products/not-an-id", "", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestCreateOrder_Success(t *testing.T) {
	ts := setupTestServer(t, false)
	mug := ts.createProduct(t, "Mug", 10, 5)

	w := ts.do("POST", "/api/orders", ts.userToken, orderBody(item(mug, 3)))
	expectStatus(t, w, http.StatusCreated)

	var order map[string]any
	decode(t, w, &order)
	if order["totalAmount"] != 30.0 {
		t.Errorf("Expected totalAmount 30, got %v", order["totalAmount"])
	}
	if order["status"] != "pending" || order["paymentStatus"] != "pending" {
		t.Errorf("Expected pending statuses, got %v / %v", order["status"], order["paymentStatus"])
	}
	if order["user"] != ts.userID {
		t.Errorf("Expected order owned by %s, got %v", ts.userID, order["user"])
	}
	if got := ts.stock(t, mug.ID); got != 2 {
		t.Errorf("Expected stock 2, got %d", got)
	}
}

func TestCreateOrder_Failures(t *testing.T) {
	ts := setupTestServer(t, false)
	mug := ts.createProduct(t, "Mug", 10, 5)
	lamp := ts.createProduct(t, "Lamp", 20, 1)

	tests := []struct {
		name        string
		token       string
		body        gin.H
		wantStatus  int
		wantMessage string
	}{
		{
			name:       "unauthenticated",
			body:       orderBody(item(mug, 1)),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:        "insufficient stock",
			token:       ts.userToken,
			body:        orderBody(item(mug, 2), item(lamp, 2)),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Insufficient stock for Lamp",
		},
		{
			name:        "unknown product",
			token:       ts.userToken,
			body:        orderBody(gin.H{"product": primitive.NewObjectID().Hex(), "quantity": 1}),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Product not found",
		},
		{
			name:        "malformed product id",
			token:       ts.userToken,
			body:        orderBody(gin.H{"product": "xyz", "quantity": 1}),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Product not found",
		},
		{
			name:       "zero quantity",
			token:      ts.userToken,
			body:       orderBody(item(mug, 0)),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no items",
			token:      ts.userToken,
			body:       orderBody(),
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do("POST", "/api/orders", tt.token, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantMessage != "" {
				var body map[string]any
				decode(t, w, &body)
				if body["message"] != tt.wantMessage {
					t.Errorf("Expected message %q, got %v", tt.wantMessage, body["message"])
				}
			}
		})
	}

	if got := ts.stock(t, mug.ID); got != 5 {
		t.Errorf("Expected failed orders to leave stock at 5, got %d", got)
	}
	if got := ts.stock(t, lamp.ID); got != 1 {
		t.Errorf("Expected failed orders to leave stock at 1, got %d", got)
	}
}

func TestGetOrder_AccessControl(t *testing.T) {
	ts := setupTestServer(t, false)
	mug := ts.createProduct(t, "Mug", 10, 5)

	w := ts.do("POST", "/api/orders", ts.userToken, orderBody(item(mug, 1)))
	expectStatus(t, w, http.StatusCreated)
	var created models.Order
	decode(t, w, &created)
	path := "/api/orders/" + created.ID.Hex()

	w = ts.do("GET", path, ts.userToken, nil)
	expectStatus(t, w, http.StatusOK)

	var view map[string]any
	decode(t, w, &view)
	user, ok := view["user"].(map[string]any)
	if !ok || user["name"] != "Alice" || user["email"] != "alice@example.com" {
		t.Errorf("Expected expanded user, got %v", view["user"])
	}
	product := view["items"].([]any)[0].(map[string]any)["product"].(map[string]any)
	if product["name"] != "Mug" || product["image"] == nil {
		t.Errorf("Expected expanded product with image, got %v", product)
	}

	w = ts.do("GET", path, ts.adminToken, nil)
	expectStatus(t, w, http.StatusOK)

	w = ts.do("GET", path, ts.otherToken, nil)
	expectStatus(t, w, http.StatusForbidden)

	w = ts.do("GET", "/api/orders/"+primitive.NewObjectID().Hex(), ts.userToken, nil)
	expectStatus(t, w, http.StatusNotFound)

	w = ts.do("GET", "/api/orders/not-an-id", ts.userToken, nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestListOrders_AdminOnly(t *testing.T) {
	ts := setupTestServer(t, false)
	mug := ts.createProduct(t, "Mug", 10, 5)

	expectStatus(t, ts.do("POST", "/api/orders", ts.userToken, orderBody(item(mug, 1))), http.StatusCreated)
	expectStatus(t, ts.do("POST", "/api/orders", ts.otherToken, orderBody(item(mug, 1))), http.StatusCreated)

	w := ts.do("GET", "/api/orders", ts.userToken, nil)
	expectStatus(t, w, http.StatusForbidden)

	w = ts.do("GET", "/api/orders", ts.adminToken, nil)
	expectStatus(t, w, http.StatusOK)
	var all []map[string]any
	decode(t, w, &all)
	if len(all) != 2 {
		t.Fatalf("Expected 2 orders, got %d", len(all))
	}
	product := all[0]["items"].([]any)[0].(map[string]any)["product"].(map[string]any)
	if _, hasImage := product["image"]; hasImage {
		t.Errorf("Admin listing must not expand product image, got %v", product)
	}

	w = ts.do("GET", "/api/orders/my-orders", ts.userToken, nil)
	expectStatus(t, w, http.StatusOK)
	var mine []map[string]any
	decode(t, w, &mine)
	if len(mine) != 1 {
		t.Fatalf("Expected 1 own order, got %d", len(mine))
	}
	if mine[0]["user"] != ts.userID {
		t.Errorf("Expected unexpanded owner id, got %v", mine[0]["user"])
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	ts := setupTestServer(t, false)
	mug := ts.createProduct(t, "Mug", 10, 5)

	w := ts.do("POST", "/api/orders", ts.userToken, orderBody(item(mug, 1)))
	expectStatus(t, w, http.StatusCreated)
	var created models.Order
	decode(t, w, &created)
	path := "/api/orders/" + created.ID.Hex() + "/status"

	w = ts.do("PATCH", path, ts.userToken, gin.H{"status": "shipped"})
	expectStatus(t, w, http.StatusForbidden)

	w = ts.do("PATCH", path, ts.adminToken, gin.H{"status": "delivered"})
	expectStatus(t, w, http.StatusOK)
	var updated models.Order
	decode(t, w, &updated)
	if updated.Status != models.OrderStatusDelivered {
		t.Errorf("Expected status delivered, got %s", updated.Status)
	}

	w = ts.do("PATCH", path, ts.adminToken, gin.H{"status": "pending"})
	expectStatus(t, w, http.StatusOK)

	w = ts.do("PATCH", path, ts.adminToken, gin.H{"status": "teleported"})
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do("PATCH", "/api/orders/"+primitive.NewObjectID().Hex()+"/status", ts.adminToken, gin.H{"status": "shipped"})
	expectStatus(t, w, http.StatusNotFound)
}

type brokenOrders struct {
	database.OrderStore
}

func (brokenOrders) Find(context.Context, database.OrderFilter) ([]models.Order, error) {
	return nil, errors.New("connection reset")
}

func TestInternalErrors_HideDetailOutsideDevelopment(t *testing.T) {
	for _, development := range []bool{false, true} {
		ts := setupTestServer(t, development)
		ts.store.Orders = brokenOrders{OrderStore: ts.store.Orders}

		w := ts.do("GET", "/api/orders/my-orders", ts.userToken, nil)
		expectStatus(t, w, http.StatusInternalServerError)

		var body map[string]any
		decode(t, w, &body)
		if body["message"] != "Error fetching orders" {
			t.Errorf("Expected generic message, got %v", body["message"])
		}
		if _, hasDetail := body["error"]; hasDetail != development {
			t.Errorf("development=%v: unexpected error detail presence in %v", development, body)
		}
	}
}

// orderDuringUpdate places an order right before the first product read or write the
// update handler makes, so the two requests interleave.
type orderDuringUpdate struct {
	database.ProductStore
	placeOrder func()
}

func (s *orderDuringUpdate) interleave() {
	if s.placeOrder != nil {
		placeOrder := s.placeOrder
		s.placeOrder = nil
		placeOrder()
	}
}

func (s *orderDuringUpdate) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	s.interleave()
	return s.ProductStore.FindByID(ctx, id)
}

func (s *orderDuringUpdate) Update(ctx context.Context, id primitive.ObjectID, patch models.UpdateProductRequest) (*models.Product, error) {
	s.interleave()
	return s.ProductStore.Update(ctx, id, patch)
}

func TestUpdateProduct_KeepsConcurrentStockChanges(t *testing.T) {
	ts := setupTestServer(t, false)
	mug := ts.createProduct(t, "Mug", 10, 5)

	products := &orderDuringUpdate{ProductStore: ts.store.Products}
	ts.router = NewRouter(RouterConfig{
		Logger:   ts.logger,
		Env:      "test",
		Port:     "5001",
		Auth:     ts.auth,
		Orders:   ts.orders,
		Products: products,
	})
	products.placeOrder = func() {
		w := ts.do("POST", "/api/orders", ts.userToken, orderBody(item(mug, 3)))
		if w.Code != http.StatusCreated {
			t.Errorf("Expected concurrent order to succeed, got %d: %s", w.Code, w.Body.String())
		}
	}

	w := ts.do("PUT", "/api/products/"+mug.ID.Hex(), ts.adminToken, gin.H{"name": "renamed mug"})
	expectStatus(t, w, http.StatusOK)

	var updated models.Product
	decode(t, w, &updated)
	if updated.Name != "renamed mug" {
		t.Errorf("Expected name %q, got %q", "renamed mug", updated.Name)
	}
	if updated.Stock != 2 {
		t.Errorf("Expected response stock 2, got %d", updated.Stock)
	}
	if got := ts.stock(t, mug.ID); got != 2 {
		t.Errorf("Expected stock 2 after order(3) and rename, got %d", got)
	}
}

func TestUpdateProduct_Patch(t *testing.T) {
	ts := setupTestServer(t, false)
	mug := ts.createProduct(t, "Mug", 10, 5)
	path := "/api/products/" + mug.ID.Hex()

	w := ts.do("PUT", path, ts.adminToken, gin.H{"stock": 12, "featured": true})
	expectStatus(t, w, http.StatusOK)
	var updated models.Product
	decode(t, w, &updated)
	if updated.Stock != 12 || !updated.Featured || updated.Name != "Mug" || updated.Price != 10 {
		t.Errorf("Unexpected patched product: %+v", updated)
	}

	w = ts.do("PUT", path, ts.adminToken, gin.H{"name": "   "})
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do("PUT", path, ts.adminToken, gin.H{"stock": -1})
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do("PUT", "/api/products/"+primitive.NewObjectID().Hex(), ts.adminToken, gin.H{"name": "Ghost"})
	expectStatus(t, w, http.StatusNotFound)

	if got := ts.stock(t, mug.ID); got != 12 {
		t.Errorf("Expected rejected patches to leave stock at 12, got %d", got)
	}
}

type bindingErrorBody struct {
	Message string              `json:"message"`
	Errors  []models.FieldError `json:"errors"`
}

func TestBindingErrors_UseJSONFieldNames(t *testing.T) {
	ts := setupTestServer(t, false)
	mug := ts.createProduct(t, "Mug", 10, 5)

	w := ts.do("POST", "/api/orders", ts.userToken, orderBody(item(mug, 0)))
	expectStatus(t, w, http.StatusBadRequest)
	if strings.Contains(w.Body.String(), "CreateOrderRequest") || strings.Contains(w.Body.String(), "Key:") {
		t.Errorf("Binding error leaked Go type names: %s", w.Body.String())
	}

	var body bindingErrorBody
	decode(t, w, &body)
	if body.Message != "Validation failed" {
		t.Errorf("Expected message %q, got %q", "Validation failed", body.Message)
	}
	if len(body.Errors) != 1 || body.Errors[0].Field != "items[0].quantity" || body.Errors[0].Message != "items[0].quantity must be at least 1" {
		t.Errorf("Unexpected field errors: %+v", body.Errors)
	}

	w = ts.do("POST", "/api/auth/register", "", gin.H{"name": "Dan", "email": "not-an-email", "password": "123"})
	expectStatus(t, w, http.StatusBadRequest)
	body = bindingErrorBody{}
	decode(t, w, &body)
	fields := map[string]bool{}
	for _, fe := range body.Errors {
		fields[fe.Field] = true
	}
	if !fields["email"] || !fields["password"] || len(fields) != 2 {
		t.Errorf("Expected email and password errors, got %+v", body.Errors)
	}

	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	expectStatus(t, w, http.StatusBadRequest)
	body = bindingErrorBody{}
	decode(t, w, &body)
	if body.Message != "Invalid request body" {
		t.Errorf("Expected message %q, got %q", "Invalid request body", body.Message)
	}
}
