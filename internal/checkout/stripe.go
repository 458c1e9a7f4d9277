package checkout

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/coupon"
)

// StripeGateway crée des Checkout Sessions Stripe. Les métadonnées de la
// session portent tout ce que le webhook devra relire : références produit
// sur chaque ligne, coupon figé, identité client.
type StripeGateway struct {
	FrontendURL string
}

var allowedCountries = []string{"FR", "BE", "LU", "CH", "DE"}

func (g *StripeGateway) CreateSession(ctx context.Context, spec SessionSpec) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.FrontendURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(g.FrontendURL + "/checkout/cancel"),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(allowedCountries),
		},
		PhoneNumberCollection: &stripe.CheckoutSessionPhoneNumberCollectionParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx

	// Référence de suivi côté boutique, reprise telle quelle dans les événements
	params.ClientReferenceID = stripe.String(uuid.NewString())

	if spec.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(spec.CustomerEmail)
	}
	params.AddMetadata("customer_email", spec.CustomerEmail)
	params.AddMetadata("customer_name", spec.CustomerName)

	for _, line := range spec.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(line.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String("eur"),
				UnitAmount: stripe.Int64(line.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
					// C'est cette référence que le webhook résout vers le catalogue
					Metadata: map[string]string{"product_id": line.ProductID},
				},
			},
		})
	}

	// Coupon figé : montant gelé dans les métadonnées + remise appliquée via
	// un coupon Stripe éphémère à usage unique
	if spec.Coupon != nil {
		discountCents := int64(math.Round(spec.Coupon.DiscountAmount * 100))
		params.AddMetadata("coupon_id", spec.Coupon.CouponID)
		params.AddMetadata("coupon_code", spec.Coupon.Code)
		params.AddMetadata("discount_amount", strconv.FormatInt(discountCents, 10))

		stripeCoupon, err := g.createOnceCoupon(ctx, spec.Coupon.Code, discountCents)
		if err != nil {
			return "", fmt.Errorf("coupon passerelle: %w", err)
		}
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(stripeCoupon)},
		}
	}

	sess, err := session.New(params)
	if err != nil {
		return "", err
	}

	log.Printf("💳 Session de paiement créée: %s (%d lignes) pour %s", sess.ID, len(spec.Lines), spec.CustomerEmail)
	return sess.URL, nil
}

func (g *StripeGateway) createOnceCoupon(ctx context.Context, code string, amountOff int64) (string, error) {
	params := &stripe.CouponParams{
		AmountOff: stripe.Int64(amountOff),
		Currency:  stripe.String("eur"),
		Duration:  stripe.String(string(stripe.CouponDurationOnce)),
		Name:      stripe.String(code),
	}
	params.Context = ctx

	c, err := coupon.New(params)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

var _ Gateway = (*StripeGateway)(nil)
