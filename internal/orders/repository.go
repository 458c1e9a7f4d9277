package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"lumera_back_end/internal/database"
	"lumera_back_end/internal/models"
)

// ErrOrderIntrouvable — aucune commande pour cet identifiant.
var ErrOrderIntrouvable = errors.New("commande introuvable")

// OrderStore est le contrat de persistance du pipeline. Derrière des
// interfaces pour pouvoir rejouer les scénarios webhook en test sans Scylla.
type OrderStore interface {
	// FindByTransaction est la garde d'idempotence : appelée avant tout
	// effet de bord. ErrOrderIntrouvable = première livraison.
	FindByTransaction(ctx context.Context, transactionID string) (*models.Order, error)

	// ReserveTransaction tente de réserver le transaction_id via une
	// insertion conditionnelle. false = une livraison concurrente a gagné
	// la course; le perdant relit et répond "déjà traité".
	ReserveTransaction(ctx context.Context, transactionID string, orderID gocql.UUID, orderNumber string) (bool, error)

	// FindReservation lit la réservation seule, que l'en-tête existe ou
	// non. Une réservation sans en-tête signale une livraison précédente
	// interrompue entre la réservation et l'écriture de l'en-tête : la
	// matérialisation reprend avec l'id et le numéro déjà réservés.
	FindReservation(ctx context.Context, transactionID string) (gocql.UUID, string, error)

	InsertOrder(ctx context.Context, o *models.Order) error
	InsertItem(ctx context.Context, it *models.OrderItem) error
	InsertAddress(ctx context.Context, kind string, a *models.Address) error
	AppendHistory(ctx context.Context, h *models.OrderHistoryEntry) error
	UpdatePaymentStatus(ctx context.Context, orderID gocql.UUID, status string) error
	GetAggregate(ctx context.Context, orderID gocql.UUID) (*models.OrderAggregate, error)
}

// Types d'adresse persistés
const (
	AddressShipping = "shipping"
	AddressBilling  = "billing"
)

// ScyllaOrderStore — implémentation sur le keyspace commandes.
type ScyllaOrderStore struct{}

func NewScyllaOrderStore() *ScyllaOrderStore { return &ScyllaOrderStore{} }

func (s *ScyllaOrderStore) FindByTransaction(ctx context.Context, transactionID string) (*models.Order, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	var orderID gocql.UUID
	err = session.Query(
		`SELECT order_id FROM orders_by_transaction WHERE transaction_id = ?`,
		transactionID,
	).WithContext(ctx).Scan(&orderID)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrOrderIntrouvable
	}
	if err != nil {
		return nil, fmt.Errorf("lecture orders_by_transaction: %w", err)
	}

	return s.getOrder(ctx, session, orderID)
}

func (s *ScyllaOrderStore) FindReservation(ctx context.Context, transactionID string) (gocql.UUID, string, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return gocql.UUID{}, "", err
	}

	var orderID gocql.UUID
	var orderNumber string
	err = session.Query(
		`SELECT order_id, order_number FROM orders_by_transaction WHERE transaction_id = ?`,
		transactionID,
	).WithContext(ctx).Scan(&orderID, &orderNumber)
	if errors.Is(err, gocql.ErrNotFound) {
		return gocql.UUID{}, "", ErrOrderIntrouvable
	}
	if err != nil {
		return gocql.UUID{}, "", fmt.Errorf("lecture orders_by_transaction: %w", err)
	}
	return orderID, orderNumber, nil
}

func (s *ScyllaOrderStore) getOrder(ctx context.Context, session *gocql.Session, orderID gocql.UUID) (*models.Order, error) {
	var o models.Order
	o.ID = orderID
	err := session.Query(
		`SELECT order_number, customer_email, customer_name, payment_status, fulfillment_status,
		        subtotal, tax, shipping, discount, total, transaction_id, session_id,
		        coupon_id, coupon_code, created_at
		 FROM orders WHERE order_id = ?`,
		orderID,
	).WithContext(ctx).Scan(
		&o.OrderNumber, &o.CustomerEmail, &o.CustomerName, &o.PaymentStatus, &o.FulfillmentStatus,
		&o.Subtotal, &o.Tax, &o.Shipping, &o.Discount, &o.Total, &o.TransactionID, &o.SessionID,
		&o.CouponID, &o.CouponCode, &o.CreatedAt,
	)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrOrderIntrouvable
	}
	if err != nil {
		return nil, fmt.Errorf("lecture orders: %w", err)
	}
	return &o, nil
}

func (s *ScyllaOrderStore) ReserveTransaction(ctx context.Context, transactionID string, orderID gocql.UUID, orderNumber string) (bool, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return false, err
	}

	// LWT : c'est LA contrainte d'unicité du pipeline (une commande par transaction)
	previous := map[string]interface{}{}
	applied, err := session.Query(
		`INSERT INTO orders_by_transaction (transaction_id, order_id, order_number, created_at)
		 VALUES (?, ?, ?, ?) IF NOT EXISTS`,
		transactionID, orderID, orderNumber, time.Now(),
	).WithContext(ctx).MapScanCAS(previous)
	if err != nil {
		return false, fmt.Errorf("réservation transaction %s: %w", transactionID, err)
	}
	return applied, nil
}

func (s *ScyllaOrderStore) InsertOrder(ctx context.Context, o *models.Order) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	return session.Query(
		`INSERT INTO orders (order_id, order_number, customer_email, customer_name,
		        payment_status, fulfillment_status, subtotal, tax, shipping, discount, total,
		        transaction_id, session_id, coupon_id, coupon_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.OrderNumber, o.CustomerEmail, o.CustomerName,
		o.PaymentStatus, o.FulfillmentStatus, o.Subtotal, o.Tax, o.Shipping, o.Discount, o.Total,
		o.TransactionID, o.SessionID, o.CouponID, o.CouponCode, o.CreatedAt,
	).WithContext(ctx).Exec()
}

func (s *ScyllaOrderStore) InsertItem(ctx context.Context, it *models.OrderItem) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	return session.Query(
		`INSERT INTO order_items (order_id, item_id, product_id, product_name, quantity, unit_price, line_total)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		it.OrderID, it.ItemID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.LineTotal,
	).WithContext(ctx).Exec()
}

func (s *ScyllaOrderStore) InsertAddress(ctx context.Context, kind string, a *models.Address) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	table := "shipping_addresses"
	if kind == AddressBilling {
		table = "billing_addresses"
	}

	return session.Query(
		fmt.Sprintf(`INSERT INTO %s (order_id, name, line1, line2, city, state, postal_code, country, phone)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, table),
		a.OrderID, a.Name, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country, a.Phone,
	).WithContext(ctx).Exec()
}

func (s *ScyllaOrderStore) AppendHistory(ctx context.Context, h *models.OrderHistoryEntry) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	return session.Query(
		`INSERT INTO order_history (order_id, created_at, entry_id, status_from, status_to, note)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		h.OrderID, h.CreatedAt, h.EntryID, h.StatusFrom, h.StatusTo, h.Note,
	).WithContext(ctx).Exec()
}

func (s *ScyllaOrderStore) UpdatePaymentStatus(ctx context.Context, orderID gocql.UUID, status string) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	return session.Query(
		`UPDATE orders SET payment_status = ? WHERE order_id = ?`,
		status, orderID,
	).WithContext(ctx).Exec()
}

func (s *ScyllaOrderStore) GetAggregate(ctx context.Context, orderID gocql.UUID) (*models.OrderAggregate, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	order, err := s.getOrder(ctx, session, orderID)
	if err != nil {
		return nil, err
	}

	agg := &models.OrderAggregate{Order: *order}

	iter := session.Query(
		`SELECT item_id, product_id, product_name, quantity, unit_price, line_total
		 FROM order_items WHERE order_id = ?`,
		orderID,
	).WithContext(ctx).Iter()
	var it models.OrderItem
	it.OrderID = orderID
	for iter.Scan(&it.ItemID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.LineTotal) {
		agg.Items = append(agg.Items, it)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("lecture order_items: %w", err)
	}

	for _, kind := range []string{AddressShipping, AddressBilling} {
		table := "shipping_addresses"
		if kind == AddressBilling {
			table = "billing_addresses"
		}
		var a models.Address
		a.OrderID = orderID
		err := session.Query(
			fmt.Sprintf(`SELECT name, line1, line2, city, state, postal_code, country, phone
			 FROM %s WHERE order_id = ?`, table),
			orderID,
		).WithContext(ctx).Scan(&a.Name, &a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country, &a.Phone)
		if err != nil && !errors.Is(err, gocql.ErrNotFound) {
			return nil, fmt.Errorf("lecture %s: %w", table, err)
		}
		if err == nil {
			addr := a
			if kind == AddressShipping {
				agg.ShippingAddress = &addr
			} else {
				agg.BillingAddress = &addr
			}
		}
	}

	histIter := session.Query(
		`SELECT created_at, entry_id, status_from, status_to, note
		 FROM order_history WHERE order_id = ?`,
		orderID,
	).WithContext(ctx).Iter()
	var h models.OrderHistoryEntry
	h.OrderID = orderID
	for histIter.Scan(&h.CreatedAt, &h.EntryID, &h.StatusFrom, &h.StatusTo, &h.Note) {
		entry := h
		agg.History = append(agg.History, entry)
	}
	if err := histIter.Close(); err != nil {
		return nil, fmt.Errorf("lecture order_history: %w", err)
	}

	agg.HasItems = len(agg.Items) > 0
	agg.HasShipping = agg.ShippingAddress != nil
	agg.HasBilling = agg.BillingAddress != nil
	return agg, nil
}
