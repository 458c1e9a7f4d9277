package payement

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"

	"lumera_back_end/internal/orders"
)

// WebhookHandler reçoit les événements de paiement signés de la passerelle.
// Réponses : 400 signature invalide (ne PAS rejouer), 500 échec transitoire
// (la passerelle rejouera), 200 sinon — y compris "déjà traité".
type WebhookHandler struct {
	Pipeline *orders.Pipeline
	Sessions orders.SessionSource
	Secret   string
}

// Handle traite POST /api/payment/webhook
func (h *WebhookHandler) Handle(c *gin.Context) {
	const MaxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	payload, err := c.GetRawData()
	if err != nil {
		log.Println("❌ Lecture payload échouée:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Échec lecture body"})
		return
	}

	event, err := orders.VerifyEvent(payload, c.GetHeader("Stripe-Signature"), h.Secret)
	if err != nil {
		log.Println("❌ Signature invalide:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature invalide"})
		return
	}

	log.Printf("📥 Événement reçu : %s (%s)", event.Type, event.ID)

	switch string(event.Type) {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(c, event)
	case "payment_intent.succeeded":
		h.handlePaymentSucceeded(c, event)
	default:
		// Type hors périmètre : acquitté et ignoré
		log.Printf("ℹ️ Événement ignoré : %s", event.Type)
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func (h *WebhookHandler) handleCheckoutCompleted(c *gin.Context, event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		log.Println("❌ Erreur décodage session:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payload session invalide"})
		return
	}

	// Relecture étendue : lignes, client, adresses, métadonnées figées
	expanded, err := h.Sessions.GetExpanded(c.Request.Context(), sess.ID)
	if err != nil {
		log.Printf("❌ Relecture session %s échouée: %v", sess.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session injoignable"})
		return
	}

	detail := orders.DetailFromSession(expanded)
	order, err := h.Pipeline.ProcessCheckoutCompleted(c.Request.Context(), detail)
	if err != nil {
		// Seul l'échec de l'en-tête arrive ici : 500 pour que la passerelle
		// rejoue; la garde d'idempotence absorbera la relivraison
		log.Printf("❌ Matérialisation %s échouée: %v", detail.TransactionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Traitement échoué"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "order_number": order.OrderNumber})
}

func (h *WebhookHandler) handlePaymentSucceeded(c *gin.Context, event stripe.Event) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		log.Println("❌ Erreur décodage PaymentIntent:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payload PaymentIntent invalide"})
		return
	}

	if err := h.Pipeline.ProcessPaymentSucceeded(c.Request.Context(), pi.ID); err != nil {
		log.Printf("❌ Transition paiement %s échouée: %v", pi.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Traitement échoué"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// Health répond à la sonde GET sur la route webhook
func (h *WebhookHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "lumera-payment-webhook"})
}
