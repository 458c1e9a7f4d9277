package orders

import (
	"context"
	"log"
	"math"
	"strconv"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"

	"lumera_back_end/internal/models"
)

// SessionSource relit la session de checkout étendue (lignes, client,
// adresses) auprès de la passerelle. Interface pour pouvoir rejouer les
// webhooks en test sans appel réseau.
type SessionSource interface {
	GetExpanded(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
}

type StripeSessionSource struct{}

func (StripeSessionSource) GetExpanded(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")
	params.AddExpand("line_items.data.price.product")
	params.AddExpand("payment_intent")
	return session.Get(sessionID, params)
}

// round2 arrondit en euros à 2 décimales.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// centimes → euros
func fromCents(c int64) float64 {
	return round2(float64(c) / 100)
}

// DetailFromSession traduit la session Stripe étendue en vue neutre pour le
// pipeline. C'est ici que se décide la précédence de la remise : le montant
// figé dans les métadonnées au checkout fait foi; le total de remise calculé
// par la passerelle ne sert que de repli quand aucun coupon n'a été figé.
func DetailFromSession(sess *stripe.CheckoutSession) models.CheckoutDetail {
	detail := models.CheckoutDetail{
		SessionID:      sess.ID,
		TransactionID:  sess.ID,
		AmountTotal:    sess.AmountTotal,
		AmountSubtotal: sess.AmountSubtotal,
	}

	// Le transaction_id canonique est le PaymentIntent : c'est lui que
	// référence aussi l'événement payment_intent.succeeded.
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		detail.TransactionID = sess.PaymentIntent.ID
	}

	switch sess.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		detail.PaymentStatus = models.PaymentStatusPaid
	default:
		detail.PaymentStatus = models.PaymentStatusPending
	}

	if sess.TotalDetails != nil {
		detail.AmountTax = sess.TotalDetails.AmountTax
		detail.AmountShipping = sess.TotalDetails.AmountShipping
		detail.AmountDiscount = sess.TotalDetails.AmountDiscount
	}

	if cd := sess.CustomerDetails; cd != nil {
		detail.CustomerEmail = cd.Email
		detail.CustomerName = cd.Name
		detail.CustomerPhone = cd.Phone
		if cd.Address != nil {
			detail.Billing = addressFromStripe(cd.Address, cd.Name, cd.Phone)
		}
	}
	if detail.CustomerEmail == "" {
		detail.CustomerEmail = sess.Metadata["customer_email"]
	}
	if detail.CustomerName == "" {
		detail.CustomerName = sess.Metadata["customer_name"]
	}

	if ci := sess.CollectedInformation; ci != nil && ci.ShippingDetails != nil && ci.ShippingDetails.Address != nil {
		detail.Shipping = addressFromStripe(ci.ShippingDetails.Address, ci.ShippingDetails.Name, detail.CustomerPhone)
	}

	if sess.LineItems != nil {
		for _, li := range sess.LineItems.Data {
			line := models.CheckoutLine{
				Name:      li.Description,
				Quantity:  int(li.Quantity),
				LineTotal: fromCents(li.AmountTotal),
			}
			if li.Price != nil {
				line.UnitPrice = fromCents(li.Price.UnitAmount)
				if li.Price.Product != nil {
					// Référence catalogue portée par les métadonnées produit;
					// absente → ProductID vide, la ligne sera ignorée sans
					// faire échouer la commande
					line.ProductID = li.Price.Product.Metadata["product_id"]
					if line.Name == "" {
						line.Name = li.Price.Product.Name
					}
				}
			}
			detail.Lines = append(detail.Lines, line)
		}
	}

	// Coupon figé au checkout (métadonnées de session)
	if couponID := sess.Metadata["coupon_id"]; couponID != "" {
		cents, err := strconv.ParseInt(sess.Metadata["discount_amount"], 10, 64)
		if err != nil {
			log.Printf("⚠️ discount_amount illisible pour la session %s: %v", sess.ID, err)
			cents = detail.AmountDiscount
		}
		detail.Coupon = &models.CouponApplication{
			CouponID:       couponID,
			Code:           sess.Metadata["coupon_code"],
			DiscountAmount: fromCents(cents),
		}
	}

	return detail
}

func addressFromStripe(a *stripe.Address, name, phone string) *models.AddressDetail {
	return &models.AddressDetail{
		Name:       name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      phone,
	}
}
