package payement

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"

	"lumera_back_end/internal/orders"
	"lumera_back_end/internal/services"
)

// AdminOrdersHandler expose l'inspection des commandes au back-office.
// Les drapeaux de complétude distinguent une commande complète d'une
// commande "en-tête seul" laissée par une matérialisation partielle.
type AdminOrdersHandler struct {
	Store orders.OrderStore
}

// GetOrder traite GET /api/admin/orders/:id
func (h *AdminOrdersHandler) GetOrder(c *gin.Context) {
	orderID, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	agg, err := h.Store.GetAggregate(c.Request.Context(), orderID)
	if errors.Is(err, orders.ErrOrderIntrouvable) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}
	if err != nil {
		log.Printf("❌ Lecture commande %s échouée: %v", orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": agg,
		"complete": gin.H{
			"items":    agg.HasItems,
			"shipping": agg.HasShipping,
			"billing":  agg.HasBilling,
		},
	})
}

// SearchOrders traite GET /api/admin/orders/search?q=
func (h *AdminOrdersHandler) SearchOrders(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Paramètre q requis"})
		return
	}

	results, err := services.SearchOrders(query)
	if err != nil {
		log.Printf("❌ Recherche commandes échouée: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Recherche indisponible"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": results, "total": len(results)})
}
