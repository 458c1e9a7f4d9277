package routes

import (
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"lumera_back_end/internal/handlers/payement"
)

// RegisterRoutes monte la surface HTTP du service.
func RegisterRoutes(
	r *gin.Engine,
	webhook *payement.WebhookHandler,
	checkout *payement.CheckoutHandler,
	coupons *payement.CouponHandler,
	adminOrders *payement.AdminOrdersHandler,
) {
	corsConfig := cors.DefaultConfig()
	if frontend := os.Getenv("FRONTEND_URL"); frontend != "" {
		corsConfig.AllowOrigins = []string{frontend}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	r.Use(cors.New(corsConfig))

	api := r.Group("/api")

	// Webhook passerelle de paiement (+ sonde GET)
	api.POST("/payment/webhook", webhook.Handle)
	api.GET("/payment/webhook", webhook.Health)

	// Checkout
	api.POST("/checkout", checkout.Initiate)

	// Validation de coupon (consultative, consommée par le panier)
	api.GET("/coupons/validate", coupons.Validate)

	// Back-office
	admin := api.Group("/admin")
	admin.GET("/orders/search", adminOrders.SearchOrders)
	admin.GET("/orders/:id", adminOrders.GetOrder)
}
