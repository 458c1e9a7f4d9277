package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"

	"lumera_back_end/internal/models"
)

func expandedSession() *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:             "cs_test_1",
		PaymentIntent:  &stripe.PaymentIntent{ID: "pi_test_1"},
		PaymentStatus:  stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:    7480,
		AmountSubtotal: 6900,
		TotalDetails: &stripe.CheckoutSessionTotalDetails{
			AmountShipping: 580,
			AmountDiscount: 0,
		},
		CustomerDetails: &stripe.CheckoutSessionCustomerDetails{
			Email: "claire@example.com",
			Name:  "Claire Dupont",
			Address: &stripe.Address{
				Line1:      "12 rue des Lilas",
				City:       "Lyon",
				PostalCode: "69003",
				Country:    "FR",
			},
		},
		CollectedInformation: &stripe.CheckoutSessionCollectedInformation{
			ShippingDetails: &stripe.CheckoutSessionCollectedInformationShippingDetails{
				Name: "Claire Dupont",
				Address: &stripe.Address{
					Line1:      "12 rue des Lilas",
					City:       "Lyon",
					PostalCode: "69003",
					Country:    "FR",
				},
			},
		},
		LineItems: &stripe.LineItemList{
			Data: []*stripe.LineItem{
				{
					Description: "Clavier mécanique",
					Quantity:    1,
					AmountTotal: 4900,
					Price: &stripe.Price{
						UnitAmount: 4900,
						Product: &stripe.Product{
							Name:     "Clavier mécanique",
							Metadata: map[string]string{"product_id": "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11"},
						},
					},
				},
				{
					Description: "Produit retiré du catalogue",
					Quantity:    1,
					AmountTotal: 2000,
					Price:       &stripe.Price{UnitAmount: 2000, Product: &stripe.Product{}},
				},
			},
		},
		Metadata: map[string]string{},
	}
}

func TestDetailFromSession_TransactionCanonique(t *testing.T) {
	detail := DetailFromSession(expandedSession())

	// Le PaymentIntent est le transaction_id canonique, la session un repli
	assert.Equal(t, "pi_test_1", detail.TransactionID)
	assert.Equal(t, "cs_test_1", detail.SessionID)
	assert.Equal(t, models.PaymentStatusPaid, detail.PaymentStatus)
}

func TestDetailFromSession_ReplisSurSessionID(t *testing.T) {
	sess := expandedSession()
	sess.PaymentIntent = nil

	detail := DetailFromSession(sess)
	assert.Equal(t, "cs_test_1", detail.TransactionID)
}

func TestDetailFromSession_MontantsEtLignes(t *testing.T) {
	detail := DetailFromSession(expandedSession())

	assert.Equal(t, int64(7480), detail.AmountTotal)
	assert.Equal(t, int64(580), detail.AmountShipping)

	require.Len(t, detail.Lines, 2)
	assert.Equal(t, "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11", detail.Lines[0].ProductID)
	assert.Equal(t, 49.00, detail.Lines[0].UnitPrice)
	// Métadonnée produit absente : ProductID vide, la ligne sera ignorée plus loin
	assert.Empty(t, detail.Lines[1].ProductID)

	require.NotNil(t, detail.Shipping)
	assert.Equal(t, "Lyon", detail.Shipping.City)
	require.NotNil(t, detail.Billing)
}

func TestDetailFromSession_CouponFige(t *testing.T) {
	sess := expandedSession()
	sess.Metadata = map[string]string{
		"coupon_id":       "c1",
		"coupon_code":     "BIENVENUE10",
		"discount_amount": "690",
	}
	sess.TotalDetails.AmountDiscount = 500 // la passerelle diverge

	detail := DetailFromSession(sess)

	require.NotNil(t, detail.Coupon)
	assert.Equal(t, "c1", detail.Coupon.CouponID)
	assert.Equal(t, "BIENVENUE10", detail.Coupon.Code)
	// Le montant figé au checkout fait foi
	assert.Equal(t, 6.90, detail.Coupon.DiscountAmount)
}

func TestDetailFromSession_MontantFigeIllisible(t *testing.T) {
	sess := expandedSession()
	sess.Metadata = map[string]string{
		"coupon_id":       "c1",
		"discount_amount": "n/a",
	}
	sess.TotalDetails.AmountDiscount = 500

	detail := DetailFromSession(sess)

	// Repli sur le total de remise de la passerelle
	require.NotNil(t, detail.Coupon)
	assert.Equal(t, 5.00, detail.Coupon.DiscountAmount)
}

func TestDetailFromSession_ClientDepuisMetadonnees(t *testing.T) {
	sess := expandedSession()
	sess.CustomerDetails = nil
	sess.Metadata = map[string]string{
		"customer_email": "marc@example.com",
		"customer_name":  "Marc Petit",
	}

	detail := DetailFromSession(sess)
	assert.Equal(t, "marc@example.com", detail.CustomerEmail)
	assert.Equal(t, "Marc Petit", detail.CustomerName)
	assert.Nil(t, detail.Billing)
}
