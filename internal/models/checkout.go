package models

// CheckoutLine est une ligne du détail de session renvoyé par la passerelle.
// ProductID vide = référence catalogue irrésoluble; la ligne est ignorée
// sans faire échouer la commande.
type CheckoutLine struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice float64
	LineTotal float64
}

// AddressDetail est l'adresse telle que lue dans l'événement de paiement.
type AddressDetail struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// CheckoutDetail est la vue neutre d'un événement checkout.session.completed,
// après expansion de la session côté passerelle. Les montants sont en
// centimes (unités mineures), convertis en euros par le pipeline.
type CheckoutDetail struct {
	TransactionID  string
	SessionID      string
	PaymentStatus  string
	CustomerEmail  string
	CustomerName   string
	CustomerPhone  string
	AmountTotal    int64
	AmountSubtotal int64
	AmountTax      int64
	AmountShipping int64
	AmountDiscount int64
	Lines          []CheckoutLine
	Shipping       *AddressDetail
	Billing        *AddressDetail
	Coupon         *CouponApplication
}
