package payement

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lumera_back_end/internal/models"
)

// Validating évalue un code promo contre un sous-total.
type Validating interface {
	Validate(ctx context.Context, code string, cartTotal float64, userEmail string) models.CouponValidation
}

type CouponHandler struct {
	Validator Validating
}

// Validate traite GET /api/coupons/validate?code=&cart_total=
// Résultat consultatif : le montant qui fait foi est celui figé au checkout.
func (h *CouponHandler) Validate(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code coupon requis"})
		return
	}

	cartTotal, err := strconv.ParseFloat(c.Query("cart_total"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Montant du panier invalide"})
		return
	}

	validation := h.Validator.Validate(c.Request.Context(), code, cartTotal, c.Query("email"))
	c.JSON(http.StatusOK, validation)
}
