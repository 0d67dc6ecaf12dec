package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/access"
	"github.com/MikeMC777/buildmart/internal/auth"
	"github.com/MikeMC777/buildmart/internal/cart"
	"github.com/MikeMC777/buildmart/internal/httpx"
	"github.com/MikeMC777/buildmart/internal/money"
	"github.com/MikeMC777/buildmart/internal/order"
	"github.com/MikeMC777/buildmart/internal/product"
	"github.com/MikeMC777/buildmart/internal/project"
	"github.com/MikeMC777/buildmart/internal/stats"
	"github.com/MikeMC777/buildmart/internal/user"
)

//
// ===== in-memory stubs =====
//

// store backs products, cart lines, orders and users for the router tests.
type store struct {
	products map[string]*product.Product
	cart     map[string]*cart.Item
	orders   map[string]*order.Order
	items    map[string][]order.Item
	users    map[string]*user.User
}

func newMemStore() *store {
	return &store{
		products: map[string]*product.Product{},
		cart:     map[string]*cart.Item{},
		orders:   map[string]*order.Order{},
		items:    map[string][]order.Item{},
		users:    map[string]*user.User{},
	}
}

type productRepo struct{ *store }

func (s productRepo) Create(_ context.Context, p *product.Product) error {
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s productRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s productRepo) List(_ context.Context, q product.Query) ([]product.Product, error) {
	out := []product.Product{}
	for _, p := range s.products {
		if !q.IncludeInactive && !p.IsActive {
			continue
		}
		if q.Q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Q)) {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if q.SellerID != "" && p.SellerID != q.SellerID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s productRepo) Update(_ context.Context, p *product.Product) error {
	if _, ok := s.products[p.ID]; !ok {
		return product.ErrNotFound
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s productRepo) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := s.products[id]; !ok {
		return false, nil
	}
	delete(s.products, id)
	return true, nil
}

type cartRepo struct{ *store }

func (s cartRepo) Add(_ context.Context, it *cart.Item) (*cart.Item, error) {
	for _, cur := range s.cart {
		if cur.UserID == it.UserID && cur.ProductID == it.ProductID {
			if cur.Quantity > money.MaxQuantity-it.Quantity {
				return nil, cart.ErrTooMany
			}
			cur.Quantity += it.Quantity
			cp := *cur
			return &cp, nil
		}
	}
	cp := *it
	s.cart[it.ID] = &cp
	return it, nil
}

func (s cartRepo) GetByID(_ context.Context, id string) (*cart.Item, error) {
	it, ok := s.cart[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (s cartRepo) SetQuantity(_ context.Context, id string, qty int) (*cart.Item, error) {
	it, ok := s.cart[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	it.Quantity = qty
	cp := *it
	return &cp, nil
}

func (s cartRepo) Delete(_ context.Context, userID, id string) error {
	if it, ok := s.cart[id]; ok && it.UserID == userID {
		delete(s.cart, id)
	}
	return nil
}

func (s cartRepo) Clear(_ context.Context, userID string) error {
	for id, it := range s.cart {
		if it.UserID == userID {
			delete(s.cart, id)
		}
	}
	return nil
}

func (s cartRepo) List(_ context.Context, userID string) ([]cart.Line, error) {
	out := []cart.Line{}
	for _, it := range s.cart {
		if it.UserID != userID {
			continue
		}
		l := cart.Line{Item: *it}
		if p, ok := s.products[it.ProductID]; ok && p.IsActive {
			cp := *p
			l.Product, l.Available = &cp, true
		}
		out = append(out, l)
	}
	return out, nil
}

type orderRepo struct{ *store }

func (s orderRepo) Create(_ context.Context, o *order.Order, items []order.Item) error {
	for _, it := range items {
		p := s.products[it.ProductID]
		if p == nil || p.Stock < it.Quantity {
			return &order.OutOfStockError{ProductID: it.ProductID}
		}
	}
	for _, it := range items {
		s.products[it.ProductID].Stock -= it.Quantity
	}
	o.CreatedAt, o.UpdatedAt = time.Now().UTC(), time.Now().UTC()
	cp := *o
	s.orders[o.ID] = &cp
	s.items[o.ID] = items
	_ = cartRepo{s.store}.Clear(context.Background(), o.UserID)
	return nil
}

func (s orderRepo) GetByID(_ context.Context, id string) (*order.Order, []order.Item, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, nil, order.ErrNotFound
	}
	cp := *o
	return &cp, s.items[id], nil
}

func (s orderRepo) ListByUser(_ context.Context, userID string, _, _ int) ([]order.Order, error) {
	out := []order.Order{}
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s orderRepo) ListAll(_ context.Context, status order.Status, _, _ int) ([]order.Order, error) {
	out := []order.Order{}
	for _, o := range s.orders {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s orderRepo) UpdateStatus(_ context.Context, id string, from, to order.Status) error {
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return order.ErrStatusChanged
	}
	o.Status = to
	return nil
}

func (s orderRepo) Cancel(_ context.Context, id string, from order.Status, items []order.Item) error {
	if err := s.UpdateStatus(context.Background(), id, from, order.StatusCancelled); err != nil {
		return err
	}
	for _, it := range items {
		if p, ok := s.products[it.ProductID]; ok {
			p.Stock += it.Quantity
		}
	}
	return nil
}

type userRepo struct{ *store }

func (s userRepo) Create(_ context.Context, u *user.User) error {
	for _, x := range s.users {
		if x.Email == u.Email || x.Username == u.Username {
			return user.ErrAlreadyExist
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s userRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s userRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range s.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s userRepo) Update(_ context.Context, u *user.User, _ bool) error {
	cur, ok := s.users[u.ID]
	if !ok {
		return user.ErrNotFound
	}
	if u.Username != "" {
		cur.Username = u.Username
	}
	return nil
}

//
// ===== router under test =====
//

type testEnv struct {
	r      *gin.Engine
	st     *store
	tokens *auth.Tokens
}

func newTestEnv(t *testing.T, opts ...func(*services)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := newMemStore()
	log := zap.NewNop()
	gate := access.NewGate(access.DefaultPolicy())
	tokens := auth.NewTokens("test-secret", time.Hour)
	products := productRepo{st}
	carts := cartRepo{st}

	svcs := services{
		products:     product.NewService(products, gate, nil, log),
		carts:        cart.NewService(carts, products, gate),
		orders:       order.NewService(orderRepo{st}, products, carts, gate, log),
		projects:     project.NewService(nil, nil, gate, log),
		users:        user.NewService(userRepo{st}, tokens, gate, log),
		stats:        stats.NewService(nil, gate),
		tokens:       tokens,
		loginLimiter: nil,
	}
	for _, o := range opts {
		o(&svcs)
	}
	r := newRouter(svcs, log)
	return &testEnv{r: r, st: st, tokens: tokens}
}

func (e *testEnv) token(t *testing.T, role auth.Role) (string, *auth.Principal) {
	t.Helper()
	p := &auth.Principal{ID: uuid.NewString(), Role: role}
	tok, _, err := e.tokens.Issue(*p)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok, p
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var rd *bytes.Buffer
	if body != "" {
		rd = bytes.NewBufferString(body)
	} else {
		rd = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func (e *testEnv) addProduct(name, price string, stock int, sellerID string) *product.Product {
	p := &product.Product{ID: uuid.NewString(), Name: name, Price: price, Stock: stock, SellerID: sellerID, IsActive: true}
	_ = productRepo{e.st}.Create(context.Background(), p)
	return p
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Kind    string          `json:"kind"`
			Details json.RawMessage `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body %q: %v", w.Body.String(), err)
	}
	return body.Error.Kind
}

//
// ===== tests =====
//

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID header")
	}
}

func TestListAndSearchProducts(t *testing.T) {
	e := newTestEnv(t)
	e.addProduct("Portland Cement", "12.50", 10, uuid.NewString())
	e.addProduct("Rebar 12mm", "8.00", 10, uuid.NewString())
	hidden := e.addProduct("Old Cement", "1.00", 1, uuid.NewString())
	e.st.products[hidden.ID].IsActive = false

	// no filters: every active product
	{
		w := e.do(http.MethodGet, "/products", "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
		var got product.ListResponse
		_ = json.Unmarshal(w.Body.Bytes(), &got)
		if len(got.Items) != 2 {
			t.Fatalf("len=%d, want 2", len(got.Items))
		}
	}

	// case-insensitive search
	{
		w := e.do(http.MethodGet, "/products?search=CEMENT", "", "")
		var got product.ListResponse
		_ = json.Unmarshal(w.Body.Bytes(), &got)
		if w.Code != http.StatusOK || len(got.Items) != 1 || got.Items[0].Name != "Portland Cement" {
			t.Fatalf("unexpected search result: %d %+v", w.Code, got)
		}
		if got.Q != "CEMENT" {
			t.Fatalf("q not echoed: %q", got.Q)
		}
	}

	// inactive products are hidden from anonymous callers
	{
		w := e.do(http.MethodGet, "/products/"+hidden.ID, "", "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", w.Code)
		}
	}
}

func TestGetProduct_OK_And_NotFound(t *testing.T) {
	e := newTestEnv(t)
	p := e.addProduct("Sand", "3.00", 5, uuid.NewString())

	if w := e.do(http.MethodGet, "/products/"+p.ID, "", ""); w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	w := e.do(http.MethodGet, "/products/"+uuid.NewString(), "", "")
	if w.Code != http.StatusNotFound || errorKind(t, w) != "not_found" {
		t.Fatalf("want 404 not_found, got %d %s", w.Code, w.Body.String())
	}
}

func TestCreateProduct_Auth(t *testing.T) {
	e := newTestEnv(t)
	body := `{"name":"Brick","price":"0.45","stock":1000,"category":"masonry"}`

	// anonymous
	{
		w := e.do(http.MethodPost, "/products", "", body)
		if w.Code != http.StatusUnauthorized || errorKind(t, w) != "authentication_required" {
			t.Fatalf("want 401, got %d %s", w.Code, w.Body.String())
		}
	}
	// buyer
	{
		tok, _ := e.token(t, auth.RoleBuyer)
		w := e.do(http.MethodPost, "/products", tok, body)
		if w.Code != http.StatusForbidden || errorKind(t, w) != "forbidden" {
			t.Fatalf("want 403, got %d %s", w.Code, w.Body.String())
		}
	}
	// seller
	{
		tok, seller := e.token(t, auth.RoleSeller)
		w := e.do(http.MethodPost, "/products", tok, body)
		if w.Code != http.StatusCreated {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
		var got product.Product
		_ = json.Unmarshal(w.Body.Bytes(), &got)
		if got.SellerID != seller.ID || got.Price != "0.45" || !got.IsActive {
			t.Fatalf("unexpected product: %+v", got)
		}
	}
	// garbage token
	{
		w := e.do(http.MethodPost, "/products", "not-a-jwt", body)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("want 401 for bad token, got %d", w.Code)
		}
	}
}

func TestUpdateAndDeleteProduct_Ownership(t *testing.T) {
	e := newTestEnv(t)
	tokA, sellerA := e.token(t, auth.RoleSeller)
	tokB, _ := e.token(t, auth.RoleSeller)
	p := e.addProduct("Gravel", "2.00", 50, sellerA.ID)

	if w := e.do(http.MethodPut, "/products/"+p.ID, tokB, `{"price":"1.00"}`); w.Code != http.StatusForbidden {
		t.Fatalf("want 403 for other seller, got %d", w.Code)
	}
	w := e.do(http.MethodPut, "/products/"+p.ID, tokA, `{"price":"2.25"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got := e.st.products[p.ID]; got.Price != "2.25" || got.Stock != 50 {
		t.Fatalf("partial update not applied: %+v", got)
	}
	if w := e.do(http.MethodPut, "/products/"+p.ID, tokA, `{"price":`); w.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for bad json, got %d", w.Code)
	}
	if w := e.do(http.MethodDelete, "/products/"+p.ID, tokA, ""); w.Code != http.StatusNoContent {
		t.Fatalf("want 204, got %d", w.Code)
	}
	if w := e.do(http.MethodDelete, "/products/"+p.ID, tokA, ""); w.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", w.Code)
	}
}

func TestCartSetQuantityZeroRemoves(t *testing.T) {
	e := newTestEnv(t)
	tok, _ := e.token(t, auth.RoleBuyer)
	p := e.addProduct("Tile", "1.50", 100, uuid.NewString())

	w := e.do(http.MethodPost, "/cart", tok, `{"product_id":"`+p.ID+`","quantity":2}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var it cart.Item
	_ = json.Unmarshal(w.Body.Bytes(), &it)

	if w := e.do(http.MethodPut, "/cart/"+it.ID, tok, `{"quantity":5}`); w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d %s", w.Code, w.Body.String())
	}

	w = e.do(http.MethodGet, "/cart", tok, "")
	var v cart.View
	_ = json.Unmarshal(w.Body.Bytes(), &v)
	if len(v.Items) != 1 || v.Total != "7.50" {
		t.Fatalf("unexpected cart: %+v", v)
	}

	if w := e.do(http.MethodPut, "/cart/"+it.ID, tok, `{"quantity":0}`); w.Code != http.StatusNoContent {
		t.Fatalf("want 204, got %d %s", w.Code, w.Body.String())
	}
	if len(e.st.cart) != 0 {
		t.Fatalf("cart line not removed")
	}

	// sellers have no cart
	sellerTok, _ := e.token(t, auth.RoleSeller)
	if w := e.do(http.MethodGet, "/cart", sellerTok, ""); w.Code != http.StatusForbidden {
		t.Fatalf("want 403 for seller, got %d", w.Code)
	}
}

func TestCreateOrder(t *testing.T) {
	e := newTestEnv(t)
	tok, buyer := e.token(t, auth.RoleBuyer)
	a := e.addProduct("Cement", "10.00", 10, uuid.NewString())
	b := e.addProduct("Sand", "12.50", 5, uuid.NewString())

	body := `{"shipping_address":"Av. Siempre Viva 742","items":[` +
		`{"product_id":"` + a.ID + `","quantity":2},` +
		`{"product_id":"` + b.ID + `","quantity":2}]}`
	w := e.do(http.MethodPost, "/orders", tok, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var o order.Order
	_ = json.Unmarshal(w.Body.Bytes(), &o)
	if o.Total != "45.00" || o.Status != order.StatusPending || o.UserID != buyer.ID || len(o.Items) != 2 {
		t.Fatalf("unexpected order: %+v", o)
	}
	if e.st.products[a.ID].Stock != 8 || e.st.products[b.ID].Stock != 3 {
		t.Fatalf("stock not decremented")
	}

	// other buyers cannot read it
	otherTok, _ := e.token(t, auth.RoleBuyer)
	if w := e.do(http.MethodGet, "/orders/"+o.ID, otherTok, ""); w.Code != http.StatusForbidden {
		t.Fatalf("want 403, got %d", w.Code)
	}
	if w := e.do(http.MethodGet, "/orders/"+o.ID, tok, ""); w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
}

func TestCreateOrder_Failures(t *testing.T) {
	e := newTestEnv(t)
	tok, _ := e.token(t, auth.RoleBuyer)
	p := e.addProduct("Cement", "10.00", 1, uuid.NewString())

	cases := []struct {
		name string
		body string
		code int
		kind string
	}{
		{"unknown product", `{"shipping_address":"x","items":[{"product_id":"` + uuid.NewString() + `","quantity":1}]}`, http.StatusBadRequest, "product_not_found"},
		{"short stock", `{"shipping_address":"x","items":[{"product_id":"` + p.ID + `","quantity":2}]}`, http.StatusConflict, "insufficient_stock"},
		{"empty items", `{"shipping_address":"x","items":[]}`, http.StatusBadRequest, "validation"},
		{"no address", `{"items":[{"product_id":"` + p.ID + `","quantity":1}]}`, http.StatusBadRequest, "validation"},
	}
	for _, tc := range cases {
		w := e.do(http.MethodPost, "/orders", tok, tc.body)
		if w.Code != tc.code || errorKind(t, w) != tc.kind {
			t.Fatalf("%s: want %d %s, got %d %s", tc.name, tc.code, tc.kind, w.Code, w.Body.String())
		}
	}
	if len(e.st.orders) != 0 || e.st.products[p.ID].Stock != 1 {
		t.Fatalf("failed orders left state behind")
	}
}

func TestCheckoutAndCancel(t *testing.T) {
	e := newTestEnv(t)
	tok, _ := e.token(t, auth.RoleBuyer)
	p := e.addProduct("Pipe", "4.00", 10, uuid.NewString())

	if w := e.do(http.MethodPost, "/cart", tok, `{"product_id":"`+p.ID+`","quantity":3}`); w.Code != http.StatusCreated {
		t.Fatalf("add to cart: %d", w.Code)
	}
	w := e.do(http.MethodPost, "/orders/checkout", tok, `{"shipping_address":"Calle 1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var o order.Order
	_ = json.Unmarshal(w.Body.Bytes(), &o)
	if o.Total != "12.00" || len(e.st.cart) != 0 || e.st.products[p.ID].Stock != 7 {
		t.Fatalf("checkout result: %+v cart=%d stock=%d", o, len(e.st.cart), e.st.products[p.ID].Stock)
	}

	w = e.do(http.MethodPost, "/orders/"+o.ID+"/cancel", tok, "")
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status=%d body=%s", w.Code, w.Body.String())
	}
	if e.st.products[p.ID].Stock != 10 {
		t.Fatalf("stock not restored: %d", e.st.products[p.ID].Stock)
	}
	if w := e.do(http.MethodPost, "/orders/"+o.ID+"/cancel", tok, ""); w.Code != http.StatusConflict {
		t.Fatalf("want 409 cancelling twice, got %d", w.Code)
	}
}

func TestAdminOrderStatus(t *testing.T) {
	e := newTestEnv(t)
	buyerTok, _ := e.token(t, auth.RoleBuyer)
	adminTok, _ := e.token(t, auth.RoleAdmin)
	p := e.addProduct("Nails", "0.10", 1000, uuid.NewString())

	w := e.do(http.MethodPost, "/orders", buyerTok, `{"shipping_address":"x","items":[{"product_id":"`+p.ID+`","quantity":10}]}`)
	var o order.Order
	_ = json.Unmarshal(w.Body.Bytes(), &o)

	if w := e.do(http.MethodPut, "/orders/"+o.ID+"/status", buyerTok, `{"status":"confirmed"}`); w.Code != http.StatusForbidden {
		t.Fatalf("want 403 for buyer, got %d", w.Code)
	}
	if w := e.do(http.MethodPut, "/orders/"+o.ID+"/status", adminTok, `{"status":"delivered"}`); w.Code != http.StatusConflict {
		t.Fatalf("want 409 skipping states, got %d", w.Code)
	}
	if w := e.do(http.MethodPut, "/orders/"+o.ID+"/status", adminTok, `{"status":"confirmed"}`); w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d %s", w.Code, w.Body.String())
	}
	w = e.do(http.MethodGet, "/admin/orders?status=confirmed", adminTok, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), o.ID) {
		t.Fatalf("admin listing: %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterLoginMe(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/auth/register", "", `{"username":"ana","email":"ana@example.com","password":"s3cretpass","role":"client"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("password hash leaked: %s", w.Body.String())
	}
	if w := e.do(http.MethodPost, "/auth/register", "", `{"username":"root","email":"root@example.com","password":"s3cretpass","role":"admin"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for admin self-registration, got %d", w.Code)
	}

	if w := e.do(http.MethodPost, "/auth/login", "", `{"email":"ana@example.com","password":"nope-nope"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", w.Code)
	}
	w = e.do(http.MethodPost, "/auth/login", "", `{"email":"ana@example.com","password":"s3cretpass"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", w.Code, w.Body.String())
	}
	var res user.LoginResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Token == "" {
		t.Fatalf("empty token")
	}

	w = e.do(http.MethodGet, "/me", res.Token, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"role":"client"`) {
		t.Fatalf("me: %d %s", w.Code, w.Body.String())
	}
	if w := e.do(http.MethodGet, "/me", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 without token, got %d", w.Code)
	}
}

func TestAdminStatsForbiddenForBuyers(t *testing.T) {
	e := newTestEnv(t)
	tok, _ := e.token(t, auth.RoleBuyer)
	if w := e.do(http.MethodGet, "/admin/stats", tok, ""); w.Code != http.StatusForbidden {
		t.Fatalf("want 403, got %d", w.Code)
	}
}

func TestProjectsRequireClient(t *testing.T) {
	e := newTestEnv(t)
	tok, _ := e.token(t, auth.RoleBuyer)
	if w := e.do(http.MethodPost, "/projects", tok, `{"name":"Casa"}`); w.Code != http.StatusForbidden {
		t.Fatalf("want 403, got %d", w.Code)
	}
	if w := e.do(http.MethodGet, "/projects", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", w.Code)
	}

	// the upload is refused before the multipart body is read
	{
		body := &trackingReader{r: strings.NewReader("--x\r\n")}
		req := httptest.NewRequest(http.MethodPost, "/projects/"+uuid.NewString()+"/images", body)
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		w := httptest.NewRecorder()
		e.r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("want 401 for anonymous upload, got %d", w.Code)
		}
		if body.read {
			t.Fatalf("upload body was read before authentication")
		}
	}
}

type trackingReader struct {
	r    *strings.Reader
	read bool
}

func (t *trackingReader) Read(p []byte) (int, error) {
	t.read = true
	return t.r.Read(p)
}

func TestLoginRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	e := newTestEnv(t, func(s *services) { s.loginLimiter = httpx.NewIPRateLimiter(2) })

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"ana@example.com","password":"wrong-pass"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		w := httptest.NewRecorder()
		e.r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	want := []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes=%v, want %v", codes, want)
		}
	}
}

func TestTrustedProxyForwardedForIsHonoured(t *testing.T) {
	e := newTestEnv(t, func(s *services) {
		s.loginLimiter = httpx.NewIPRateLimiter(1)
		s.trustedProxies = []string{"192.0.2.0/24"}
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"ana@example.com","password":"wrong-pass"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		w := httptest.NewRecorder()
		e.r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("request %d: want 401 for a distinct client behind the proxy, got %d", i, w.Code)
		}
	}
}
