package models

import (
	"time"

	"github.com/gocql/gocql"
)

// Statuts de paiement / de préparation d'une commande
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"

	FulfillmentUnfulfilled = "unfulfilled"
	FulfillmentFulfilled   = "fulfilled"
)

// Order est l'en-tête de commande. Invariant central : au plus une commande
// par transaction_id — c'est la table orders_by_transaction qui le garantit.
type Order struct {
	ID                gocql.UUID `json:"id"`
	OrderNumber       string     `json:"order_number"`
	CustomerEmail     string     `json:"customer_email"`
	CustomerName      string     `json:"customer_name"`
	PaymentStatus     string     `json:"payment_status"`
	FulfillmentStatus string     `json:"fulfillment_status"`
	Subtotal          float64    `json:"subtotal"`
	Tax               float64    `json:"tax"`
	Shipping          float64    `json:"shipping"`
	Discount          float64    `json:"discount"`
	Total             float64    `json:"total"`
	TransactionID     string     `json:"transaction_id"`
	SessionID         string     `json:"session_id,omitempty"`
	CouponID          string     `json:"coupon_id,omitempty"`
	CouponCode        string     `json:"coupon_code,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// OrderItem appartient exclusivement à sa commande; créé une fois, jamais
// modifié par le pipeline.
type OrderItem struct {
	ItemID      gocql.UUID `json:"item_id"`
	OrderID     gocql.UUID `json:"order_id"`
	ProductID   string     `json:"product_id"`
	ProductName string     `json:"product_name"`
	Quantity    int        `json:"quantity"`
	UnitPrice   float64    `json:"unit_price"`
	LineTotal   float64    `json:"line_total"`
}

// Address — livraison ou facturation, zéro-ou-une par commande et par type.
type Address struct {
	OrderID    gocql.UUID `json:"order_id"`
	Name       string     `json:"name"`
	Line1      string     `json:"line1"`
	Line2      string     `json:"line2,omitempty"`
	City       string     `json:"city"`
	State      string     `json:"state,omitempty"`
	PostalCode string     `json:"postal_code"`
	Country    string     `json:"country"`
	Phone      string     `json:"phone,omitempty"`
}

// OrderHistoryEntry — journal append-only des transitions de statut.
// La première entrée a toujours StatusFrom = nil.
type OrderHistoryEntry struct {
	EntryID    gocql.UUID `json:"entry_id"`
	OrderID    gocql.UUID `json:"order_id"`
	StatusFrom *string    `json:"status_from"`
	StatusTo   string     `json:"status_to"`
	Note       string     `json:"note,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// OrderAggregate regroupe l'en-tête et ses enfants pour le back-office.
// Les booléens de complétude permettent de distinguer une commande complète
// d'une commande "en-tête seul" laissée par une matérialisation partielle.
type OrderAggregate struct {
	Order           Order               `json:"order"`
	Items           []OrderItem         `json:"items"`
	ShippingAddress *Address            `json:"shipping_address,omitempty"`
	BillingAddress  *Address            `json:"billing_address,omitempty"`
	History         []OrderHistoryEntry `json:"history"`
	HasItems        bool                `json:"has_items"`
	HasShipping     bool                `json:"has_shipping"`
	HasBilling      bool                `json:"has_billing"`
}
