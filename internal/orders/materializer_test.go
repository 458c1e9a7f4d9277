package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumera_back_end/internal/models"
)

// --- Mocks ---

type txRef struct {
	orderID     gocql.UUID
	orderNumber string
}

type memStore struct {
	mu       sync.Mutex
	byTx     map[string]txRef
	orders   map[gocql.UUID]models.Order
	items    map[gocql.UUID][]models.OrderItem
	shipping map[gocql.UUID]models.Address
	billing  map[gocql.UUID]models.Address
	history  map[gocql.UUID][]models.OrderHistoryEntry

	failInsertOrder   bool
	failItemProductID string
}

func newMemStore() *memStore {
	return &memStore{
		byTx:     map[string]txRef{},
		orders:   map[gocql.UUID]models.Order{},
		items:    map[gocql.UUID][]models.OrderItem{},
		shipping: map[gocql.UUID]models.Address{},
		billing:  map[gocql.UUID]models.Address{},
		history:  map[gocql.UUID][]models.OrderHistoryEntry{},
	}
}

func (s *memStore) FindByTransaction(_ context.Context, txID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.byTx[txID]
	if !ok {
		return nil, ErrOrderIntrouvable
	}
	o, ok := s.orders[ref.orderID]
	if !ok {
		return nil, ErrOrderIntrouvable
	}
	return &o, nil
}

func (s *memStore) ReserveTransaction(_ context.Context, txID string, orderID gocql.UUID, orderNumber string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byTx[txID]; exists {
		return false, nil
	}
	s.byTx[txID] = txRef{orderID: orderID, orderNumber: orderNumber}
	return true, nil
}

func (s *memStore) FindReservation(_ context.Context, txID string) (gocql.UUID, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.byTx[txID]
	if !ok {
		return gocql.UUID{}, "", ErrOrderIntrouvable
	}
	return ref.orderID, ref.orderNumber, nil
}

func (s *memStore) InsertOrder(_ context.Context, o *models.Order) error {
	if s.failInsertOrder {
		return errors.New("scylla indisponible")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = *o
	return nil
}

func (s *memStore) InsertItem(_ context.Context, it *models.OrderItem) error {
	if it.ProductID == s.failItemProductID && s.failItemProductID != "" {
		return errors.New("insertion ligne refusée")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.OrderID] = append(s.items[it.OrderID], *it)
	return nil
}

func (s *memStore) InsertAddress(_ context.Context, kind string, a *models.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == AddressBilling {
		s.billing[a.OrderID] = *a
	} else {
		s.shipping[a.OrderID] = *a
	}
	return nil
}

func (s *memStore) AppendHistory(_ context.Context, h *models.OrderHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[h.OrderID] = append(s.history[h.OrderID], *h)
	return nil
}

func (s *memStore) UpdatePaymentStatus(_ context.Context, orderID gocql.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrOrderIntrouvable
	}
	o.PaymentStatus = status
	s.orders[orderID] = o
	return nil
}

func (s *memStore) GetAggregate(_ context.Context, orderID gocql.UUID) (*models.OrderAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderIntrouvable
	}
	agg := &models.OrderAggregate{Order: o, Items: s.items[orderID], History: s.history[orderID]}
	agg.HasItems = len(agg.Items) > 0
	if a, ok := s.shipping[orderID]; ok {
		agg.ShippingAddress = &a
		agg.HasShipping = true
	}
	if a, ok := s.billing[orderID]; ok {
		agg.BillingAddress = &a
		agg.HasBilling = true
	}
	return agg, nil
}

type fakeCounter struct {
	mu sync.Mutex
	n  int64
}

func (c *fakeCounter) Next(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n, nil
}

type mockStock struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (m *mockStock) Decrement(_ context.Context, productID string, _ int, _ gocql.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, productID)
	if m.fail {
		return errors.New("décrément refusé")
	}
	return nil
}

type mockLedger struct {
	mu      sync.Mutex
	records map[string]int // couponID → nombre d'appels
}

func (m *mockLedger) RecordUsage(_ context.Context, couponID string, _ gocql.UUID, _ string, _ float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = map[string]int{}
	}
	m.records[couponID]++
	return nil
}

type mockNotifier struct {
	mu    sync.Mutex
	sends int
	last  models.Order
}

func (m *mockNotifier) SendOrderConfirmation(order models.Order, _ []models.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends++
	m.last = order
	return nil
}

func newTestPipeline(store OrderStore) (*Pipeline, *mockStock, *mockLedger, *mockNotifier) {
	stock := &mockStock{}
	ledger := &mockLedger{}
	notifier := &mockNotifier{}
	p := &Pipeline{
		Store:   store,
		Numbers: NewAllocator(&fakeCounter{}, nil),
		Stock:   stock,
		Coupons: ledger,
		Notif:   notifier,
	}
	return p, stock, ledger, notifier
}

func checkoutDetail() models.CheckoutDetail {
	return models.CheckoutDetail{
		TransactionID:  "pi_test_1",
		SessionID:      "cs_test_1",
		PaymentStatus:  models.PaymentStatusPaid,
		CustomerEmail:  "claire@example.com",
		CustomerName:   "Claire Dupont",
		AmountTotal:    7480,
		AmountSubtotal: 6900,
		AmountTax:      0,
		AmountShipping: 580,
		Lines: []models.CheckoutLine{
			{ProductID: "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11", Name: "Clavier mécanique", Quantity: 1, UnitPrice: 49.00, LineTotal: 49.00},
			{ProductID: "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a22", Name: "Tapis de souris", Quantity: 2, UnitPrice: 10.00, LineTotal: 20.00},
		},
		Shipping: &models.AddressDetail{
			Name: "Claire Dupont", Line1: "12 rue des Lilas", City: "Lyon",
			PostalCode: "69003", Country: "FR",
		},
		Billing: &models.AddressDetail{
			Name: "Claire Dupont", Line1: "12 rue des Lilas", City: "Lyon",
			PostalCode: "69003", Country: "FR",
		},
	}
}

// --- Tests ---

func TestProcessCheckoutCompleted_PremiereLivraison(t *testing.T) {
	store := newMemStore()
	p, stock, _, notifier := newTestPipeline(store)

	order, err := p.ProcessCheckoutCompleted(context.Background(), checkoutDetail())
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, "ORD-000001", order.OrderNumber)
	assert.Equal(t, 74.80, order.Total)
	assert.Equal(t, 69.00, order.Subtotal)
	assert.Equal(t, 5.80, order.Shipping)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, models.FulfillmentUnfulfilled, order.FulfillmentStatus)

	assert.Len(t, store.items[order.ID], 2)

	require.Len(t, store.history[order.ID], 1)
	entry := store.history[order.ID][0]
	assert.Nil(t, entry.StatusFrom)
	assert.Equal(t, models.FulfillmentUnfulfilled, entry.StatusTo)

	assert.Contains(t, store.shipping, order.ID)
	assert.Contains(t, store.billing, order.ID)

	assert.Equal(t, 1, notifier.sends)
	assert.Len(t, stock.calls, 2)
}

func TestProcessCheckoutCompleted_Relivraison(t *testing.T) {
	store := newMemStore()
	p, stock, _, notifier := newTestPipeline(store)

	first, err := p.ProcessCheckoutCompleted(context.Background(), checkoutDetail())
	require.NoError(t, err)

	second, err := p.ProcessCheckoutCompleted(context.Background(), checkoutDetail())
	require.NoError(t, err)

	// Exactement une commande pour ce transaction_id
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.orders, 1)

	// Les effets de bord n'ont tourné qu'une fois
	assert.Equal(t, 1, notifier.sends)
	assert.Len(t, stock.calls, 2)
}

func TestProcessCheckoutCompleted_CoursePerdue(t *testing.T) {
	store := newMemStore()
	p, _, _, notifier := newTestPipeline(store)

	// Une livraison concurrente a déjà réservé le transaction_id entre la
	// garde et la réservation
	winnerID := gocql.TimeUUID()
	raced := &racingStore{memStore: store, winnerID: winnerID}
	p.Store = raced
	store.orders[winnerID] = models.Order{ID: winnerID, OrderNumber: "ORD-000042", TransactionID: "pi_test_1"}

	order, err := p.ProcessCheckoutCompleted(context.Background(), checkoutDetail())
	require.NoError(t, err)
	assert.Equal(t, "ORD-000042", order.OrderNumber)

	// Le perdant n'écrit rien et ne déclenche aucun effet de bord
	assert.Len(t, store.orders, 1)
	assert.Equal(t, 0, notifier.sends)
}

// racingStore simule l'autre livraison : la garde ne voit rien, puis la
// réservation échoue, puis la relecture voit la commande gagnante.
type racingStore struct {
	*memStore
	winnerID gocql.UUID
	finds    int
}

func (s *racingStore) FindByTransaction(ctx context.Context, txID string) (*models.Order, error) {
	s.finds++
	if s.finds == 1 {
		return nil, ErrOrderIntrouvable
	}
	o := s.memStore.orders[s.winnerID]
	return &o, nil
}

func (s *racingStore) ReserveTransaction(context.Context, string, gocql.UUID, string) (bool, error) {
	return false, nil
}

func TestProcessCheckoutCompleted_AdresseLivraisonAbsente(t *testing.T) {
	store := newMemStore()
	p, _, _, _ := newTestPipeline(store)

	detail := checkoutDetail()
	detail.Shipping = nil

	order, err := p.ProcessCheckoutCompleted(context.Background(), detail)
	require.NoError(t, err)

	// Commande et lignes persistées malgré l'adresse manquante
	assert.Len(t, store.items[order.ID], 2)
	assert.NotContains(t, store.shipping, order.ID)
	assert.Contains(t, store.billing, order.ID)
}

func TestProcessCheckoutCompleted_LigneIrresoluble(t *testing.T) {
	store := newMemStore()
	p, stock, _, _ := newTestPipeline(store)

	detail := checkoutDetail()
	detail.Lines[1].ProductID = "" // référence catalogue absente

	order, err := p.ProcessCheckoutCompleted(context.Background(), detail)
	require.NoError(t, err)

	// La ligne résoluble est persistée, la commande n'avorte pas
	require.Len(t, store.items[order.ID], 1)
	assert.Equal(t, "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11", store.items[order.ID][0].ProductID)
	assert.Len(t, stock.calls, 1)
}

func TestProcessCheckoutCompleted_EchecStockNonBloquant(t *testing.T) {
	store := newMemStore()
	p, stock, _, notifier := newTestPipeline(store)
	stock.fail = true

	order, err := p.ProcessCheckoutCompleted(context.Background(), checkoutDetail())
	require.NoError(t, err)

	// La commande existe même si chaque décrément a échoué
	assert.Contains(t, store.orders, order.ID)
	assert.Len(t, stock.calls, 2)
	assert.Equal(t, 1, notifier.sends)
}

func TestProcessCheckoutCompleted_CouponExactementUneFois(t *testing.T) {
	store := newMemStore()
	p, _, ledger, _ := newTestPipeline(store)

	detail := checkoutDetail()
	detail.Coupon = &models.CouponApplication{CouponID: "c1", Code: "BIENVENUE5", DiscountAmount: 5.00}
	detail.AmountDiscount = 600 // la passerelle diverge : le montant figé fait foi

	order, err := p.ProcessCheckoutCompleted(context.Background(), detail)
	require.NoError(t, err)
	assert.Equal(t, 5.00, order.Discount)
	assert.Equal(t, "BIENVENUE5", order.CouponCode)

	// Relivraison : le compteur ne bouge plus
	_, err = p.ProcessCheckoutCompleted(context.Background(), detail)
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.records["c1"])
}

func TestProcessCheckoutCompleted_RemiseRepliPasserelle(t *testing.T) {
	store := newMemStore()
	p, _, ledger, _ := newTestPipeline(store)

	detail := checkoutDetail()
	detail.AmountDiscount = 600 // pas de coupon figé : repli sur la passerelle

	order, err := p.ProcessCheckoutCompleted(context.Background(), detail)
	require.NoError(t, err)
	assert.Equal(t, 6.00, order.Discount)
	assert.Empty(t, ledger.records)
}

func TestProcessCheckoutCompleted_EchecEnTete(t *testing.T) {
	store := newMemStore()
	store.failInsertOrder = true
	p, _, _, notifier := newTestPipeline(store)

	_, err := p.ProcessCheckoutCompleted(context.Background(), checkoutDetail())
	require.Error(t, err)

	// Aucun effet de bord sans en-tête durable
	assert.Equal(t, 0, notifier.sends)
}

func TestProcessCheckoutCompleted_RepriseApresEchecEnTete(t *testing.T) {
	store := newMemStore()
	store.failInsertOrder = true
	p, stock, _, notifier := newTestPipeline(store)

	// Première livraison : la réservation passe, l'en-tête échoue
	_, err := p.ProcessCheckoutCompleted(context.Background(), checkoutDetail())
	require.Error(t, err)
	require.Empty(t, store.orders)

	// Le datastore revient : la relivraison reprend la réservation laissée
	// en place et réécrit l'en-tête sous le numéro déjà réservé
	store.failInsertOrder = false
	order, err := p.ProcessCheckoutCompleted(context.Background(), checkoutDetail())
	require.NoError(t, err)

	assert.Equal(t, "ORD-000001", order.OrderNumber)
	assert.Len(t, store.orders, 1)
	assert.Len(t, store.items[order.ID], 2)
	require.Len(t, store.history[order.ID], 1)
	assert.Equal(t, 1, notifier.sends)
	assert.Len(t, stock.calls, 2)

	// Une livraison supplémentaire est absorbée par la garde
	again, err := p.ProcessCheckoutCompleted(context.Background(), checkoutDetail())
	require.NoError(t, err)
	assert.Equal(t, order.ID, again.ID)
	assert.Len(t, store.orders, 1)
	assert.Equal(t, 1, notifier.sends)
}

func TestProcessCheckoutCompleted_SansTransactionID(t *testing.T) {
	store := newMemStore()
	p, _, _, _ := newTestPipeline(store)

	detail := checkoutDetail()
	detail.TransactionID = ""

	_, err := p.ProcessCheckoutCompleted(context.Background(), detail)
	require.Error(t, err)
}

func TestProcessPaymentSucceeded_TransactionInconnue(t *testing.T) {
	store := newMemStore()
	p, _, _, _ := newTestPipeline(store)

	// Acquitté et ignoré : ne crée jamais de commande
	err := p.ProcessPaymentSucceeded(context.Background(), "pi_inconnu")
	require.NoError(t, err)
	assert.Empty(t, store.orders)
}

func TestProcessPaymentSucceeded_TransitionneCommandeExistante(t *testing.T) {
	store := newMemStore()
	p, _, _, _ := newTestPipeline(store)

	detail := checkoutDetail()
	detail.PaymentStatus = models.PaymentStatusPending
	order, err := p.ProcessCheckoutCompleted(context.Background(), detail)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPending, store.orders[order.ID].PaymentStatus)

	err = p.ProcessPaymentSucceeded(context.Background(), detail.TransactionID)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPaid, store.orders[order.ID].PaymentStatus)
	require.Len(t, store.history[order.ID], 2)
	second := store.history[order.ID][1]
	require.NotNil(t, second.StatusFrom)
	assert.Equal(t, models.PaymentStatusPending, *second.StatusFrom)
	assert.Equal(t, models.PaymentStatusPaid, second.StatusTo)
}

func TestProcessPaymentSucceeded_DejaPayee(t *testing.T) {
	store := newMemStore()
	p, _, _, _ := newTestPipeline(store)

	order, err := p.ProcessCheckoutCompleted(context.Background(), checkoutDetail())
	require.NoError(t, err)

	err = p.ProcessPaymentSucceeded(context.Background(), "pi_test_1")
	require.NoError(t, err)

	// Pas de transition ni d'entrée d'historique superflue
	assert.Len(t, store.history[order.ID], 1)
}
