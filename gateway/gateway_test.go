package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/tablepos/pkg/auth"
	"github.com/example/tablepos/pkg/config"
	"github.com/example/tablepos/pkg/models"
	"github.com/example/tablepos/pkg/notify"
	"github.com/example/tablepos/pkg/repository"
	"github.com/example/tablepos/pkg/session"
	"github.com/example/tablepos/pkg/storage"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memStore) Upload(_ context.Context, img *storage.Image) (string, error) {
	data, err := io.ReadAll(img.Data)
	if err != nil {
		return "", err
	}
	name := storage.ObjectName(img.Filename)
	s.mu.Lock()
	s.objects[name] = data
	s.types[name] = img.ContentType
	s.mu.Unlock()
	return storage.PublicURL("/api/v1/images", name), nil
}

func (s *memStore) Open(_ context.Context, name string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[name]
	if !ok {
		return nil, "", storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), s.types[name], nil
}

type testEnv struct {
	handler http.Handler
	hub     *notify.Hub
	token   string
	store   *memStore
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:                                   logger.Discard,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })

	log := zap.NewNop()
	hub := notify.NewHub()
	hooks := repository.Hooks{Publisher: hub}
	store := newMemStore()

	products := repository.NewProductRepository(db, store, hooks, log)
	users := repository.NewUserRepository(db, nil, log)
	orders := repository.NewOrderRepository(db, users, hooks, log)
	carts := session.NewManager(config.SessionConfig{RequestTimeout: 2 * time.Second}, products, orders, log)
	t.Cleanup(carts.Shutdown)

	issuer := auth.NewIssuer("test-secret", time.Hour)
	authSvc := auth.NewService(db, issuer, log)
	if err := authSvc.Seed(context.Background(), "admin@tablepos.local", "admin12345"); err != nil {
		t.Fatal(err)
	}

	gw := NewGateway(&config.GatewayConfig{MaxUploadMB: 1}, Deps{
		Catalog: products,
		Orders:  orders,
		Status:  orders,
		Carts:   carts,
		Guests:  users,
		Stats:   repository.NewStatsRepository(db),
		Auth:    authSvc,
		Tokens:  issuer,
		Images:  store,
		Events:  hub,
	}, log)
	gw.SetupRoutes()

	env := &testEnv{handler: gw.Handler(), hub: hub, store: store}

	var sess auth.Session
	env.do(t, "POST", "/api/v1/auth/login", map[string]string{"email": "admin@tablepos.local", "password": "admin12345"}, nil, http.StatusOK, &sess)
	env.token = sess.Token
	return env
}

// do sends a JSON request and checks the status code. out may be nil.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string, want int, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return e.serve(t, req, want, out)
}

func (e *testEnv) serve(t *testing.T, req *http.Request, want int, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	if w.Code != want {
		t.Fatalf("%s %s = %d, want %d: %s", req.Method, req.URL.Path, w.Code, want, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
	return w
}

func (e *testEnv) staff() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.token}
}

func (e *testEnv) createProduct(t *testing.T, form map[string]string, image []byte) models.Product {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range form {
		mw.WriteField(k, v)
	}
	if image != nil {
		fw, _ := mw.CreateFormFile("image", "photo.PNG")
		fw.Write(image)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/products", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.token)

	var p models.Product
	e.serve(t, req, http.StatusCreated, &p)
	return p
}

// nextStatuses fetches an order and joins the actions it offers.
func (e *testEnv) nextStatuses(t *testing.T, id string) string {
	t.Helper()
	var order models.Order
	e.do(t, "GET", "/api/v1/orders/"+id, nil, e.staff(), http.StatusOK, &order)
	if order.NextStatuses == nil {
		t.Fatalf("order %s has no next_statuses", id)
	}
	out := make([]string, len(order.NextStatuses))
	for i, s := range order.NextStatuses {
		out[i] = string(s)
	}
	return strings.Join(out, ",")
}

func TestHealth(t *testing.T) {
	env := newEnv(t)
	env.do(t, "GET", "/health", nil, nil, http.StatusOK, nil)
}

func TestStaffRoutesRequireToken(t *testing.T) {
	env := newEnv(t)
	env.do(t, "GET", "/api/v1/orders", nil, nil, http.StatusUnauthorized, nil)
	env.do(t, "GET", "/api/v1/dashboard", nil, nil, http.StatusUnauthorized, nil)
	env.do(t, "DELETE", "/api/v1/products/x", nil, nil, http.StatusUnauthorized, nil)
	env.do(t, "GET", "/api/v1/products", nil, map[string]string{"Authorization": "Bearer forged"}, http.StatusUnauthorized, nil)
	env.do(t, "POST", "/api/v1/auth/login", map[string]string{"email": "admin@tablepos.local", "password": "nope"}, nil, http.StatusUnauthorized, nil)
}

func TestProductEndpoints(t *testing.T) {
	env := newEnv(t)

	p := env.createProduct(t, map[string]string{
		"name": "Nasi Goreng", "price": "25000", "stock": "3", "category": "food", "barcode": "899001",
	}, []byte("png-bytes"))
	env.createProduct(t, map[string]string{"name": "Es Jeruk", "price": "8000", "stock": "0", "category": "drinks"}, nil)

	if p.ImageURL == nil || !strings.HasPrefix(*p.ImageURL, "/api/v1/images/") || !strings.HasSuffix(*p.ImageURL, ".png") {
		t.Fatalf("image url = %v", p.ImageURL)
	}
	w := env.do(t, "GET", *p.ImageURL, nil, nil, http.StatusOK, nil)
	if w.Body.String() != "png-bytes" {
		t.Fatalf("image body = %q", w.Body.String())
	}

	var list struct {
		Products []models.Product `json:"products"`
		Total    int              `json:"total"`
	}
	env.do(t, "GET", "/api/v1/products", nil, nil, http.StatusOK, &list)
	if list.Total != 2 || list.Products[0].Name != "Es Jeruk" {
		t.Fatalf("products = %+v", list)
	}

	env.do(t, "GET", "/api/v1/products/search?in_stock=true", nil, nil, http.StatusOK, &list)
	if list.Total != 1 || list.Products[0].ID != p.ID {
		t.Fatalf("in-stock menu = %+v", list)
	}

	var found models.Product
	env.do(t, "GET", "/api/v1/products/barcode/899001", nil, nil, http.StatusOK, &found)
	if found.ID != p.ID {
		t.Fatalf("barcode lookup = %+v", found)
	}
	env.do(t, "GET", "/api/v1/products/barcode/000", nil, nil, http.StatusNotFound, nil)

	bad := httptest.NewRequest("POST", "/api/v1/products", strings.NewReader("name=X&price=abc&category=food"))
	bad.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	bad.Header.Set("Authorization", "Bearer "+env.token)
	env.serve(t, bad, http.StatusBadRequest, nil)

	env.do(t, "DELETE", "/api/v1/products/"+p.ID, nil, env.staff(), http.StatusOK, nil)
	env.do(t, "DELETE", "/api/v1/products/"+p.ID, nil, env.staff(), http.StatusNotFound, nil)
}

func TestUploadTooLarge(t *testing.T) {
	env := newEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("name", "Big")
	fw, _ := mw.CreateFormFile("image", "big.jpg")
	fw.Write(bytes.Repeat([]byte("x"), 2<<20))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/products", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token)
	env.serve(t, req, http.StatusRequestEntityTooLarge, nil)
}

func TestGuestCheckoutAndWorkflow(t *testing.T) {
	env := newEnv(t)
	p := env.createProduct(t, map[string]string{"name": "Sate", "price": "15000", "stock": "2", "category": "food"}, nil)
	guest := map[string]string{sessionHeader: "table-7"}

	env.do(t, "GET", "/api/v1/cart", nil, nil, http.StatusBadRequest, nil)

	var cart session.Snapshot
	env.do(t, "POST", "/api/v1/cart/items", map[string]interface{}{"product_id": p.ID, "quantity": 2}, guest, http.StatusOK, &cart)
	if cart.ItemCount != 2 || cart.Total.String() != "30000" {
		t.Fatalf("cart = %+v", cart)
	}
	env.do(t, "POST", "/api/v1/cart/items", map[string]interface{}{"product_id": p.ID}, guest, http.StatusConflict, nil)
	env.do(t, "PUT", "/api/v1/cart/items/"+p.ID+"/note", map[string]string{"note": "no peanut"}, guest, http.StatusOK, &cart)
	if cart.Lines[0].Notes != "no peanut" {
		t.Fatalf("note = %q", cart.Lines[0].Notes)
	}

	env.do(t, "POST", "/api/v1/cart/checkout", map[string]string{"table_number": "7"}, guest, http.StatusUnauthorized, nil)
	env.do(t, "POST", "/api/v1/cart/checkout", map[string]string{"guest_phone": "08123456789", "guest_name": "Budi", "payment_method": "bitcoin"}, guest, http.StatusBadRequest, nil)

	var placed struct {
		Order models.Order     `json:"order"`
		Cart  session.Snapshot `json:"cart"`
	}
	env.do(t, "POST", "/api/v1/cart/checkout", map[string]string{
		"table_number": "7", "guest_phone": "08123456789", "guest_name": "Budi", "payment_method": "cash",
	}, guest, http.StatusCreated, &placed)
	if placed.Order.Status != models.StatusPending || placed.Order.CashierID != nil || placed.Cart.ItemCount != 0 {
		t.Fatalf("placed = %+v", placed)
	}

	var guestInfo map[string]string
	env.do(t, "GET", "/api/v1/guests/08123456789", nil, nil, http.StatusOK, &guestInfo)
	if guestInfo["name"] != "Budi" {
		t.Fatalf("guest = %v", guestInfo)
	}
	env.do(t, "GET", "/api/v1/guests/0800000000", nil, nil, http.StatusNotFound, nil)
	env.do(t, "GET", "/api/v1/guests/abc", nil, nil, http.StatusBadRequest, nil)

	var orders struct {
		Orders []models.Order `json:"orders"`
	}
	env.do(t, "GET", "/api/v1/orders?status=pending", nil, env.staff(), http.StatusOK, &orders)
	if len(orders.Orders) != 1 || orders.Orders[0].User == nil || orders.Orders[0].User.Name != "Budi" {
		t.Fatalf("orders = %+v", orders.Orders)
	}

	id := placed.Order.ID
	if got := env.nextStatuses(t, id); got != "in_progress,cancelled" {
		t.Fatalf("pending order offers %q", got)
	}
	var listed struct {
		Orders []map[string]interface{} `json:"orders"`
	}
	env.do(t, "GET", "/api/v1/orders", nil, env.staff(), http.StatusOK, &listed)
	if len(listed.Orders) != 1 || len(listed.Orders[0]["next_statuses"].([]interface{})) != 2 {
		t.Fatalf("listed orders = %v", listed.Orders)
	}

	env.do(t, "PUT", "/api/v1/orders/"+id+"/status", map[string]string{"status": "done"}, env.staff(), http.StatusConflict, nil)
	var updated models.Order
	env.do(t, "PUT", "/api/v1/orders/"+id+"/status", map[string]string{"status": "in_progress"}, env.staff(), http.StatusOK, &updated)
	if updated.Status != models.StatusInProgress {
		t.Fatalf("status = %s", updated.Status)
	}
	env.do(t, "PUT", "/api/v1/orders/"+id+"/status", map[string]string{"status": "done"}, env.staff(), http.StatusOK, nil)
	env.do(t, "PUT", "/api/v1/orders/"+id+"/status", map[string]string{"status": "cancelled"}, env.staff(), http.StatusConflict, nil)
	if got := env.nextStatuses(t, id); got != "" {
		t.Fatalf("done order offers %q", got)
	}
	env.do(t, "GET", "/api/v1/orders/nope", nil, env.staff(), http.StatusNotFound, nil)

	var stats repository.DashboardStats
	env.do(t, "GET", "/api/v1/dashboard", nil, env.staff(), http.StatusOK, &stats)
	if stats.TodayOrders != 1 || stats.TodayRevenue.String() != "30000" {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestStaffCheckoutRecordsCashier(t *testing.T) {
	env := newEnv(t)
	p := env.createProduct(t, map[string]string{"name": "Kopi", "price": "5000", "stock": "9", "category": "drinks"}, nil)

	headers := env.staff()
	headers[sessionHeader] = "pos-1"
	env.do(t, "POST", "/api/v1/cart/items", map[string]interface{}{"product_id": p.ID, "quantity": 3}, headers, http.StatusOK, nil)

	var placed struct {
		Order models.Order `json:"order"`
	}
	env.do(t, "POST", "/api/v1/cart/checkout", map[string]string{}, headers, http.StatusCreated, &placed)
	if placed.Order.CashierID == nil || placed.Order.TotalAmount.String() != "15000" {
		t.Fatalf("order = %+v", placed.Order)
	}
}

func TestRealtimeStream(t *testing.T) {
	env := newEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/realtime", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// the listener registers after the upgrade; keep publishing until one arrives
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(20 * time.Millisecond):
				env.hub.Publish(context.Background(), notify.NewEvent(notify.TableOrders, notify.Insert))
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event notify.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatal(err)
	}
	if event.Table != notify.TableOrders || event.Type != notify.Insert {
		t.Fatalf("event = %+v", event)
	}
}
