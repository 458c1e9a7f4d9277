package payement

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"lumera_back_end/internal/checkout"
)

// Initiating est le contrat du point d'entrée checkout, derrière une
// interface pour les tests.
type Initiating interface {
	Initiate(ctx context.Context, req checkout.InitiateRequest) (string, error)
}

type CheckoutHandler struct {
	Initiator Initiating
}

// Initiate traite POST /api/checkout : valide le stock, fige le coupon,
// crée la session de paiement et rend l'URL de redirection.
func (h *CheckoutHandler) Initiate(c *gin.Context) {
	var req checkout.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	url, err := h.Initiator.Initiate(c.Request.Context(), req)
	if err != nil {
		var stockErr *checkout.StockError
		if errors.As(err, &stockErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Stock insuffisant",
				"product":   stockErr.Product,
				"available": stockErr.Available,
				"requested": stockErr.Requested,
			})
			return
		}

		var validationErr *checkout.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
			return
		}

		log.Printf("❌ Initiation checkout échouée: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur création paiement"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
