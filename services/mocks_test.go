package services_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kingjethro999/the-ecommerce-api/models"
	"github.com/kingjethro999/the-ecommerce-api/repository"
	"github.com/kingjethro999/the-ecommerce-api/services"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// ---- in-memory catalog store ----

type memState struct {
	users    map[uuid.UUID]models.User
	products []models.Product
	orders   map[uuid.UUID]models.Order
	items    []models.OrderItem
	payments []models.Payment
}

func (st memState) clone() memState {
	c := memState{
		users:    make(map[uuid.UUID]models.User, len(st.users)),
		products: append([]models.Product(nil), st.products...),
		orders:   make(map[uuid.UUID]models.Order, len(st.orders)),
		items:    append([]models.OrderItem(nil), st.items...),
		payments: append([]models.Payment(nil), st.payments...),
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	return c
}

// memStore enforces the same unique constraints as the database.
// Transactions hold the store lock for their whole duration.
type memStore struct {
	mu sync.Mutex
	st memState

	findOrderErr error
	createErr    error
	txCount      int
}

func newMemStore(products ...models.Product) *memStore {
	return &memStore{st: memState{
		users:    map[uuid.UUID]models.User{},
		products: products,
		orders:   map[uuid.UUID]models.Order{},
	}}
}

func newProduct(name string, price int64) models.Product {
	return models.Product{ID: uuid.New(), Name: name, Slug: name, Price: decimal.NewFromInt(price), IsActive: true, ImageURL: "https://cdn.example.com/" + name + ".png"}
}

func (s *memStore) tx() *memTx { return &memTx{s: s} }

func (s *memStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().FindUserByEmail(ctx, email)
}
func (s *memStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateUser(ctx, u)
}
func (s *memStore) FindProductByName(ctx context.Context, name string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().FindProductByName(ctx, name)
}
func (s *memStore) FindOrderByPaymentRef(ctx context.Context, ref string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findOrderErr != nil {
		return nil, s.findOrderErr
	}
	return s.tx().FindOrderByPaymentRef(ctx, ref)
}
func (s *memStore) LockOrderByPaymentRef(ctx context.Context, ref string) (*models.Order, error) {
	return s.FindOrderByPaymentRef(ctx, ref)
}
func (s *memStore) GetOrderWithDetails(ctx context.Context, ref string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetOrderWithDetails(ctx, ref)
}
func (s *memStore) CreateOrder(ctx context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateOrder(ctx, o)
}
func (s *memStore) CreateOrderItem(ctx context.Context, i *models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateOrderItem(ctx, i)
}
func (s *memStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreatePayment(ctx, p)
}
func (s *memStore) UpdateOrderStatus(ctx context.Context, id uuid.UUID, os, ps string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().UpdateOrderStatus(ctx, id, os, ps)
}
func (s *memStore) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().UpdatePaymentStatus(ctx, id, status)
}
func (s *memStore) WithinTransaction(_ context.Context, fn func(tx repository.CatalogStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++
	snapshot := s.st.clone()
	if err := fn(s.tx()); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}
func (s *memStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.payments)
}
func (s *memStore) userCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.users)
}
func (s *memStore) putOrder(o models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.orders[o.ID] = o
}
func (s *memStore) putPayment(p models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.payments = append(s.st.payments, p)
}
func (s *memStore) putUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
}
func (s *memStore) itemsFor(orderID uuid.UUID) []models.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OrderItem
	for _, i := range s.st.items {
		if i.OrderID == orderID {
			out = append(out, i)
		}
	}
	return out
}
func (s *memStore) paymentFor(orderID uuid.UUID) *models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.st.payments {
		if p.OrderID == orderID {
			cp := p
			return &cp
		}
	}
	return nil
}
func (s *memStore) order(id uuid.UUID) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.orders[id]
}

// memTx operates on the state without locking; the caller holds mu.
type memTx struct{ s *memStore }

func (t *memTx) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range t.s.st.users {
		if strings.EqualFold(u.Email, email) {
			cp := u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}
func (t *memTx) CreateUser(_ context.Context, u *models.User) error {
	if t.s.createErr != nil {
		return t.s.createErr
	}
	for _, existing := range t.s.st.users {
		if existing.Email == u.Email || existing.Phone == u.Phone {
			return repository.ErrDuplicateUser
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	t.s.st.users[u.ID] = *u
	return nil
}
func (t *memTx) FindProductByName(_ context.Context, name string) (*models.Product, error) {
	for _, p := range t.s.st.products {
		if p.Name == name {
			cp := p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}
func (t *memTx) FindOrderByPaymentRef(_ context.Context, ref string) (*models.Order, error) {
	for _, o := range t.s.st.orders {
		if o.StripePaymentIntentID == ref {
			cp := o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}
func (t *memTx) LockOrderByPaymentRef(ctx context.Context, ref string) (*models.Order, error) {
	return t.FindOrderByPaymentRef(ctx, ref)
}
func (t *memTx) GetOrderWithDetails(ctx context.Context, ref string) (*models.Order, error) {
	o, err := t.FindOrderByPaymentRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	for _, i := range t.s.st.items {
		if i.OrderID == o.ID {
			o.OrderItems = append(o.OrderItems, i)
		}
	}
	for _, p := range t.s.st.payments {
		if p.OrderID == o.ID {
			cp := p
			o.Payment = &cp
		}
	}
	return o, nil
}
func (t *memTx) CreateOrder(_ context.Context, o *models.Order) error {
	for _, existing := range t.s.st.orders {
		if existing.StripePaymentIntentID == o.StripePaymentIntentID {
			return repository.ErrDuplicatePaymentRef
		}
		if existing.OrderNumber == o.OrderNumber || existing.TrackingNumber == o.TrackingNumber {
			return repository.ErrDuplicateOrderIdentifier
		}
	}
	t.s.st.orders[o.ID] = *o
	return nil
}
func (t *memTx) CreateOrderItem(_ context.Context, i *models.OrderItem) error {
	t.s.st.items = append(t.s.st.items, *i)
	return nil
}
func (t *memTx) CreatePayment(_ context.Context, p *models.Payment) error {
	for _, existing := range t.s.st.payments {
		if existing.StripePaymentIntentID == p.StripePaymentIntentID {
			return repository.ErrDuplicatePaymentRef
		}
	}
	t.s.st.payments = append(t.s.st.payments, *p)
	return nil
}
func (t *memTx) UpdateOrderStatus(_ context.Context, id uuid.UUID, os, ps string) error {
	o, ok := t.s.st.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.OrderStatus = os
	o.PaymentStatus = ps
	t.s.st.orders[id] = o
	return nil
}
func (t *memTx) UpdatePaymentStatus(_ context.Context, id uuid.UUID, status string) error {
	for i := range t.s.st.payments {
		if t.s.st.payments[i].OrderID == id {
			t.s.st.payments[i].Status = status
		}
	}
	return nil
}
func (t *memTx) WithinTransaction(_ context.Context, fn func(tx repository.CatalogStore) error) error {
	return fn(t)
}

// ---- fake gateway ----

type createdProduct struct {
	Name       string
	UnitAmount int64
	Currency   string
	Image      string
}

type createdIntent struct {
	Amount   int64
	Currency string
	Metadata map[string]string
}

type fakeGateway struct {
	mu sync.Mutex

	products        []models.GatewayProduct
	createdProducts []createdProduct
	intents         []createdIntent
	stored          map[string]*models.GatewayIntent

	listCalls     int
	retrieveCalls int

	listErr          error
	createProductErr error
	createIntentErr  error
	retrieveErr      error

	// retrieveBarrier, when set, holds RetrievePaymentIntent until every
	// caller has arrived.
	retrieveBarrier *sync.WaitGroup
}

func newFakeGateway(products ...string) *fakeGateway {
	g := &fakeGateway{stored: map[string]*models.GatewayIntent{}}
	for i, name := range products {
		g.products = append(g.products, models.GatewayProduct{ID: fmt.Sprintf("prod_%d", i), Name: name})
	}
	return g
}

func (g *fakeGateway) ListActiveProducts(_ context.Context) ([]models.GatewayProduct, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]models.GatewayProduct(nil), g.products...), nil
}

func (g *fakeGateway) CreateProduct(_ context.Context, name string, unitAmount int64, currency, image string) (*models.GatewayProduct, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createProductErr != nil {
		return nil, g.createProductErr
	}
	p := models.GatewayProduct{ID: fmt.Sprintf("prod_new_%d", len(g.createdProducts)), Name: name}
	g.products = append(g.products, p)
	g.createdProducts = append(g.createdProducts, createdProduct{Name: name, UnitAmount: unitAmount, Currency: currency, Image: image})
	return &p, nil
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, amount int64, currency string, metadata map[string]string) (*models.IntentHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createIntentErr != nil {
		return nil, g.createIntentErr
	}
	id := fmt.Sprintf("pi_test_%d", len(g.intents)+1)
	g.intents = append(g.intents, createdIntent{Amount: amount, Currency: currency, Metadata: metadata})
	g.stored[id] = &models.GatewayIntent{ID: id, Amount: amount, Currency: currency, Metadata: metadata, PaymentMethodTypes: []string{"card"}}
	return &models.IntentHandle{ID: id, ClientSecret: id + "_secret_abc", Amount: amount, Currency: currency}, nil
}

func (g *fakeGateway) RetrievePaymentIntent(_ context.Context, id string) (*models.GatewayIntent, error) {
	if g.retrieveBarrier != nil {
		g.retrieveBarrier.Done()
		g.retrieveBarrier.Wait()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retrieveCalls++
	if g.retrieveErr != nil {
		return nil, g.retrieveErr
	}
	pi, ok := g.stored[id]
	if !ok {
		return nil, services.ErrIntentNotFound
	}
	cp := *pi
	return &cp, nil
}

func (g *fakeGateway) ConstructEvent(_ []byte, _ string) (stripe.Event, error) {
	return stripe.Event{}, services.ErrInvalidSignature
}

func (g *fakeGateway) put(intent *models.GatewayIntent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stored[intent.ID] = intent
}

// ---- identifiers ----

type seqIdentifiers struct {
	mu sync.Mutex
	n  int
}

func (s *seqIdentifiers) Next() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("ORDER-%d", s.n), fmt.Sprintf("TRACK-%d", s.n)
}

// fixedIdentifiers returns the same pair for the first collide calls.
type fixedIdentifiers struct {
	mu      sync.Mutex
	collide int
	calls   int
}

func (f *fixedIdentifiers) Next() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.collide {
		return "ORDER-TAKEN", "TRACK-TAKEN"
	}
	return fmt.Sprintf("ORDER-FRESH-%d", f.calls), fmt.Sprintf("TRACK-FRESH-%d", f.calls)
}

// ---- events, alerts, metrics, cache ----

type mockPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	keys     []string
	err      error
}

func (p *mockPublisher) Publish(_ context.Context, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.payloads = append(p.payloads, payload)
	return p.err
}
func (p *mockPublisher) Close() error { return nil }
func (p *mockPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

type mockAlerter struct {
	mu     sync.Mutex
	alerts []models.PipelineAlert
}

func (a *mockAlerter) Alert(_ context.Context, alert models.PipelineAlert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	return nil
}

type mockMetrics struct {
	mu     sync.Mutex
	counts map[string]float64
}

func newMockMetrics() *mockMetrics { return &mockMetrics{counts: map[string]float64{}} }

func (m *mockMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
	return nil
}
func (m *mockMetrics) RecordValue(_ context.Context, name string, v float64, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name] += v
	return nil
}
func (m *mockMetrics) get(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

type mockCache struct {
	products    []models.GatewayProduct
	hit         bool
	sets        int
	invalidated int
}

func (c *mockCache) Get(_ context.Context) ([]models.GatewayProduct, bool) {
	return c.products, c.hit
}
func (c *mockCache) Set(_ context.Context, products []models.GatewayProduct) error {
	c.sets++
	c.products = products
	c.hit = true
	return nil
}
func (c *mockCache) Invalidate(_ context.Context) error {
	c.invalidated++
	c.hit = false
	return nil
}

// ---- helpers ----

type harness struct {
	store     *memStore
	gateway   *fakeGateway
	publisher *mockPublisher
	alerter   *mockAlerter
	metrics   *mockMetrics
	deps      services.Deps
}

func newHarness(store *memStore, gateway *fakeGateway) *harness {
	logger, _ := zap.NewDevelopment()
	h := &harness{
		store:     store,
		gateway:   gateway,
		publisher: &mockPublisher{},
		alerter:   &mockAlerter{},
		metrics:   newMockMetrics(),
	}
	h.deps = services.Deps{
		Store:       store,
		Gateway:     gateway,
		Codec:       services.NewMetadataCodec(),
		Identifiers: &seqIdentifiers{},
		Publisher:   h.publisher,
		Alerter:     h.alerter,
		Metrics:     h.metrics,
		Logger:      logger,
	}
	return h
}

func (h *harness) materializer(cancelConfirmed bool) services.OrderMaterializer {
	return services.NewOrderMaterializer(h.deps, services.MaterializerConfig{
		DefaultCurrency:          "usd",
		OrderNumberAttempts:      3,
		CancelConfirmedOnFailure: cancelConfirmed,
	})
}

func line(name string, price string, qty int) models.CartLineItem {
	return models.CartLineItem{Name: name, Price: decimal.RequireFromString(price), Quantity: qty, Image: "https://cdn.example.com/" + name + ".jpg"}
}

// paidIntent stores an intent whose metadata carries cart and customer.
func paidIntent(g *fakeGateway, id string, cart models.Cart, customer models.CustomerDescriptor) *models.GatewayIntent {
	md, err := services.NewMetadataCodec().Encode(cart, customer)
	if err != nil {
		panic(err)
	}
	amount, err := services.ToMinorUnits(cart.Total(), "usd")
	if err != nil {
		panic(err)
	}
	pi := &models.GatewayIntent{
		ID:                 id,
		Amount:             amount,
		Currency:           "usd",
		Status:             "succeeded",
		Metadata:           md,
		PaymentMethodTypes: []string{"card"},
	}
	g.put(pi)
	return pi
}

func confirmedOrder(ref string, status string) (models.Order, models.Payment) {
	o := models.Order{
		ID:                    uuid.New(),
		OrderNumber:           "ORDER-" + ref,
		TrackingNumber:        "TRACK-" + ref,
		UserID:                uuid.New(),
		Currency:              "usd",
		TotalOrderAmount:      decimal.NewFromInt(20),
		OrderStatus:           status,
		PaymentStatus:         models.PaymentStatusSucceeded,
		StripePaymentIntentID: ref,
		CreatedAt:             time.Now(),
	}
	p := models.Payment{
		ID:                    uuid.New(),
		OrderID:               o.ID,
		StripePaymentIntentID: ref,
		Amount:                o.TotalOrderAmount,
		Currency:              "usd",
		Status:                models.PaymentStatusSucceeded,
		PaymentMethod:         "card",
	}
	return o, p
}
