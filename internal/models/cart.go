package models

// CartItem est une ligne du panier telle qu'envoyée par le client au checkout.
// Le panier vit côté client; le serveur ne fait que le valider et le figer
// dans la session de paiement.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"image_url,omitempty"`
}

// CouponApplication est le coupon appliqué au panier, tel que figé au checkout.
type CouponApplication struct {
	CouponID       string  `json:"coupon_id"`
	Code           string  `json:"code"`
	DiscountAmount float64 `json:"discount_amount"`
}
