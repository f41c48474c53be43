package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bookstore-core/internal/address"
	"bookstore-core/internal/cart"
	"bookstore-core/internal/catalog"
	"bookstore-core/internal/checkout"
	"bookstore-core/internal/hydrate"
	"bookstore-core/internal/metrics"
	"bookstore-core/internal/notify"
	"bookstore-core/internal/order"
	"bookstore-core/internal/payment"
	"bookstore-core/internal/reference"
	"bookstore-core/internal/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------- fakes ----------

type books map[string]catalog.Product

func (b books) Get(ctx context.Context, id string) (catalog.Product, error) {
	p, ok := b[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

type inventory struct {
	mu    sync.Mutex
	stock map[string]int
}

func (i *inventory) DecrementStock(ctx context.Context, orderID, productID string, qty int) (catalog.StockResult, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stock[productID] -= qty
	return catalog.StockResult{ProductID: productID, Remaining: i.stock[productID], Applied: true}, nil
}

func (i *inventory) IncrementSales(ctx context.Context, orderID, productID string, qty int) ([]string, error) {
	return nil, nil
}

type addressBook struct {
	address.Service
	byID map[uuid.UUID]address.Address
}

func (a addressBook) Get(ctx context.Context, sess *session.Session, id uuid.UUID) (*address.Address, error) {
	if _, err := session.Require(sess); err != nil {
		return nil, err
	}
	addr, ok := a.byID[id]
	if !ok || addr.UserID != sess.UserID {
		return nil, address.ErrAddressNotFound
	}
	return &addr, nil
}

func (a addressBook) List(ctx context.Context, sess *session.Session) ([]*address.Address, error) {
	if _, err := session.Require(sess); err != nil {
		return nil, err
	}
	var out []*address.Address
	for _, addr := range a.byID {
		if addr.UserID == sess.UserID {
			addr := addr
			out = append(out, &addr)
		}
	}
	return out, nil
}

// ---------- harness ----------

var home = uuid.MustParse("0b8f4a52-3e0e-4f7e-8d3a-4c9a1c0e2b11")

type testAPI struct {
	handler  http.Handler
	orch     *checkout.Orchestrator
	resolver *session.JWTResolver
	metrics  *metrics.Registry
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	catalogue := books{
		"b1": {ID: "b1", Title: "Dune", Author: "Herbert", Price: 100, DisplayStock: 2},
		"b2": {ID: "b2", Title: "Emma", Author: "Austen", Price: 250, DisplayStock: 10},
	}
	reg := metrics.NewRegistry()

	cartSvc := cart.NewService(
		reference.NewCartStore(reference.NewMemoryRepository()),
		reference.NewWishlistStore(reference.NewMemoryRepository()),
		hydrate.NewHydrator(catalogue, hydrate.WithMetrics(reg)),
	)
	t.Cleanup(cartSvc.Close)

	orders := order.NewMemoryStore()
	addresses := addressBook{byID: map[uuid.UUID]address.Address{
		home: {ID: home, UserID: "alice", City: "Pune"},
	}}

	orch := checkout.New(checkout.Deps{
		Cart:      cartSvc,
		Orders:    orders,
		Inventory: &inventory{stock: map[string]int{"b1": 10, "b2": 10}},
		Sink:      notify.LogSink{},
		Addresses: addresses,
		Payments:  payment.NewSimulator(0),
		Metrics:   reg,
	}, checkout.DefaultConfig())

	resolver := session.NewJWTResolver("test-secret")

	return &testAPI{
		handler: NewRouter(Deps{
			Resolver:  resolver,
			Cart:      cartSvc,
			Checkout:  orch,
			Orders:    order.NewService(orders, order.NewLifecycle(orders)),
			Addresses: addresses,
			Metrics:   reg,
		}),
		orch:     orch,
		resolver: resolver,
		metrics:  reg,
	}
}

func (a *testAPI) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := a.resolver.Issue(session.Session{UserID: userID, Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// ---------- tests ----------

func TestRouter_Healthz(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RequiresLogin(t *testing.T) {
	api := newTestAPI(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/cart"},
		{http.MethodPost, "/cart/items"},
		{http.MethodGet, "/wishlist"},
		{http.MethodGet, "/checkout/summary"},
		{http.MethodGet, "/orders"},
	} {
		rec := api.do(t, tc.method, tc.path, "", map[string]string{"productId": "b1"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.Equal(t, "not_logged_in", decodeBody[errorBody](t, rec).Code)
	}

	rec := api.do(t, http.MethodGet, "/cart", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_CartFlow(t *testing.T) {
	api := newTestAPI(t)
	alice := api.token(t, "alice", session.RoleUser)

	rec := api.do(t, http.MethodPost, "/cart/items", alice, map[string]string{"productId": "b1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	added := decodeBody[reference.Record](t, rec)
	assert.Equal(t, 1, added.Quantity)

	rec = api.do(t, http.MethodPost, "/cart/items", alice, map[string]string{"productId": "b2"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodGet, "/cart", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[cart.View](t, rec)
	assert.Equal(t, 2, view.ItemCount)
	assert.Equal(t, int64(350), view.Total)
	assert.False(t, view.HasStockViolation)

	t.Run("quantity above stock is a warning", func(t *testing.T) {
		rec := api.do(t, http.MethodPatch, "/cart/items/"+added.ID, alice, map[string]int{"quantity": 3})
		require.Equal(t, http.StatusConflict, rec.Code)
		body := decodeBody[errorBody](t, rec)
		assert.Equal(t, "exceeds_stock", body.Code)
		require.NotNil(t, body.Warning)
		assert.Equal(t, 2, body.Warning.Available)
	})

	t.Run("quantity below one is rejected", func(t *testing.T) {
		rec := api.do(t, http.MethodPatch, "/cart/items/"+added.ID, alice, map[string]int{"quantity": 0})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("quantity within stock", func(t *testing.T) {
		rec := api.do(t, http.MethodPatch, "/cart/items/"+added.ID, alice, map[string]int{"quantity": 2})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, decodeBody[reference.Record](t, rec).Quantity)
	})

	t.Run("other users cannot touch the item", func(t *testing.T) {
		bob := api.token(t, "bob", session.RoleUser)
		rec := api.do(t, http.MethodDelete, "/cart/items/"+added.ID, bob, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	rec = api.do(t, http.MethodDelete, "/cart", alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/cart", alice, nil)
	assert.Equal(t, 0, decodeBody[cart.View](t, rec).ItemCount)
}

func TestRouter_WishlistRejectsDuplicates(t *testing.T) {
	api := newTestAPI(t)
	alice := api.token(t, "alice", session.RoleUser)

	rec := api.do(t, http.MethodPost, "/wishlist/items", alice, map[string]string{"productId": "b2"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPost, "/wishlist/items", alice, map[string]string{"productId": "b2"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", decodeBody[errorBody](t, rec).Code)

	rec = api.do(t, http.MethodGet, "/wishlist", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[struct {
		Items []hydrate.Hydrated `json:"items"`
	}](t, rec)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Emma", body.Items[0].Product.Title)
}

func TestRouter_CheckoutAndOrders(t *testing.T) {
	api := newTestAPI(t)
	alice := api.token(t, "alice", session.RoleUser)
	admin := api.token(t, "root", session.RoleAdmin)

	rec := api.do(t, http.MethodPost, "/checkout", alice, map[string]string{"addressId": home.String(), "paymentMethod": "cod"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_cart", decodeBody[errorBody](t, rec).Code)

	rec = api.do(t, http.MethodPost, "/cart/items", alice, map[string]string{"productId": "b1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodGet, "/checkout/summary", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(188), decodeBody[order.Summary](t, rec).FinalAmount)

	rec = api.do(t, http.MethodPost, "/checkout", alice, map[string]string{"addressId": home.String(), "paymentMethod": "bitcoin"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodPost, "/checkout", alice, map[string]string{"addressId": home.String(), "paymentMethod": "cod"})
	require.Equal(t, http.StatusCreated, rec.Code)
	placed := decodeBody[struct {
		Order   orderResponse  `json:"order"`
		Payment payment.Result `json:"payment"`
	}](t, rec)
	api.orch.Wait()

	assert.Equal(t, order.StatusPending, placed.Order.Status)
	assert.Equal(t, int64(188), placed.Order.FinalAmount)
	assert.True(t, placed.Order.Cancellable)
	assert.Equal(t, 20, placed.Order.Progress)
	assert.Equal(t, payment.StatusPending, placed.Payment.Status)

	rec = api.do(t, http.MethodGet, "/cart", alice, nil)
	assert.Equal(t, 0, decodeBody[cart.View](t, rec).ItemCount)

	rec = api.do(t, http.MethodGet, "/orders", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeBody[struct {
		Orders []orderResponse `json:"orders"`
	}](t, rec)
	require.Len(t, listed.Orders, 1)

	t.Run("non admin cannot update status", func(t *testing.T) {
		rec := api.do(t, http.MethodPatch, "/admin/orders/"+placed.Order.ID+"/status", alice, map[string]string{"status": "confirmed"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin moves the order forward", func(t *testing.T) {
		rec := api.do(t, http.MethodPatch, "/admin/orders/"+placed.Order.ID+"/status", admin, map[string]string{"status": "confirmed"})
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[orderResponse](t, rec)
		assert.Equal(t, order.StatusConfirmed, got.Status)
		assert.Len(t, got.StatusHistory, 2)

		rec = api.do(t, http.MethodGet, "/admin/orders?status=confirmed", admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[struct {
			Orders []orderResponse `json:"orders"`
		}](t, rec).Orders, 1)
	})

	t.Run("owner cancels once", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/orders/"+placed.Order.ID+"/cancel", alice, map[string]string{"reason": "changed my mind"})
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[orderResponse](t, rec)
		assert.Equal(t, order.StatusCancelled, got.Status)
		assert.Equal(t, "changed my mind", got.StatusHistory[len(got.StatusHistory)-1].Note)
		assert.Empty(t, got.NextPossibleStatuses)

		rec = api.do(t, http.MethodPost, "/orders/"+placed.Order.ID+"/cancel", alice, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("other users do not see the order", func(t *testing.T) {
		bob := api.token(t, "bob", session.RoleUser)
		rec := api.do(t, http.MethodGet, "/orders/"+placed.Order.ID, bob, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	rec = api.do(t, http.MethodGet, "/debug/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(1), decodeBody[map[string]uint64](t, rec)[metrics.OrdersPlaced])
}

func TestRouter_ListAddresses(t *testing.T) {
	api := newTestAPI(t)
	alice := api.token(t, "alice", session.RoleUser)

	rec := api.do(t, http.MethodGet, "/addresses", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[struct {
		Addresses []address.Address `json:"addresses"`
	}](t, rec)
	require.Len(t, body.Addresses, 1)
	assert.Equal(t, home, body.Addresses[0].ID)

	rec = api.do(t, http.MethodDelete, "/addresses/not-a-uuid", alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_CartEvents(t *testing.T) {
	api := newTestAPI(t)
	alice := api.token(t, "alice", session.RoleUser)

	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/cart/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+alice)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan cart.View, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var v cart.View
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &v) == nil {
				events <- v
			}
		}
		close(events)
	}()

	waitFor := func(itemCount int) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case v, ok := <-events:
				require.True(t, ok, "stream closed")
				if v.ItemCount == itemCount {
					return
				}
			case <-deadline:
				t.Fatalf("no cart event with %d items", itemCount)
			}
		}
	}

	waitFor(0)

	rec := api.do(t, http.MethodPost, "/cart/items", alice, map[string]string{"productId": "b2"})
	require.Equal(t, http.StatusCreated, rec.Code)
	waitFor(1)
}

func TestRateLimiter_StrictTierForCheckout(t *testing.T) {
	limiter := NewRateLimiter()
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < burstStrict; i++ {
		assert.Equal(t, http.StatusNoContent, send(http.MethodPost, "/checkout"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodPost, "/checkout"))

	// the general tier has its own bucket
	assert.Equal(t, http.StatusNoContent, send(http.MethodGet, "/cart"))
}

func TestRateLimiter_Prune(t *testing.T) {
	limiter := NewRateLimiter()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.get("ip:1:general", limitGeneral, burstGeneral)
	now = now.Add(visitorTTL + time.Second)
	limiter.get("ip:2:general", limitGeneral, burstGeneral)

	limiter.Prune()

	assert.Len(t, limiter.visitors, 1)
	assert.Contains(t, limiter.visitors, "ip:2:general")
}
