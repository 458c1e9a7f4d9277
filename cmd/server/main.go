package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"

	"lumera_back_end/internal/checkout"
	"lumera_back_end/internal/config"
	"lumera_back_end/internal/coupons"
	"lumera_back_end/internal/database"
	"lumera_back_end/internal/handlers/payement"
	"lumera_back_end/internal/inventory"
	"lumera_back_end/internal/orders"
	"lumera_back_end/internal/routes"
	"lumera_back_end/internal/services"
	"lumera_back_end/internal/utils"
)

func main() {
	config.Load()

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	if stripe.Key == "" {
		log.Fatal("❌ Impossible d'initialiser Stripe : clé manquante")
	}
	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if webhookSecret == "" {
		log.Fatal("❌ STRIPE_WEBHOOK_SECRET manquant — le webhook refuserait tous les événements")
	}
	log.Println("✅ Stripe initialisé")

	database.ConnectDatabases()

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}

	// --- Numérotation des commandes ---
	counter := &orders.RedisCounter{Client: database.Redis}
	sequenceStore := orders.NewScyllaSequenceStore()
	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := counter.EnsureSeed(seedCtx, sequenceStore); err != nil {
		cancel()
		log.Fatalf("❌ Amorçage séquence commandes impossible: %v", err)
	}
	cancel()

	// --- Pipeline de matérialisation des commandes ---
	stockStore := inventory.NewScyllaStore()
	pipeline := &orders.Pipeline{
		Store:   orders.NewScyllaOrderStore(),
		Numbers: orders.NewAllocator(counter, sequenceStore),
		Stock:   stockStore,
		Coupons: coupons.NewLedger(),
		Notif:   &utils.EmailNotifier{FrontendURL: frontendURL},
		Indexer: services.NewOrderIndex(),
	}

	// --- Checkout ---
	validator := &coupons.Validator{
		Source: coupons.NewScyllaCouponSource(),
		Cache:  database.Redis,
	}
	initiator := &checkout.Initiator{
		Stock:   stockStore,
		Coupons: validator,
		Gateway: &checkout.StripeGateway{FrontendURL: frontendURL},
	}

	r := gin.Default()
	routes.RegisterRoutes(r,
		&payement.WebhookHandler{
			Pipeline: pipeline,
			Sessions: orders.StripeSessionSource{},
			Secret:   webhookSecret,
		},
		&payement.CheckoutHandler{Initiator: initiator},
		&payement.CouponHandler{Validator: validator},
		&payement.AdminOrdersHandler{Store: pipeline.Store},
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("🚀 Serveur Lumera lancé sur le port", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("❌ Serveur arrêté: %v", err)
	}
}
