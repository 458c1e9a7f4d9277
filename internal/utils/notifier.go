package utils

import (
	"log"

	"lumera_back_end/internal/models"
)

// EmailNotifier envoie la confirmation de commande : HTML + facture PDF en
// pièce jointe quand le rendu aboutit. Une seule tentative; l'appelant
// journalise l'échec sans jamais le propager à la passerelle.
type EmailNotifier struct {
	FrontendURL string
}

func (n *EmailNotifier) SendOrderConfirmation(order models.Order, items []models.OrderItem) error {
	html := GenerateOrderConfirmationHTML(order, items)

	var pdf []byte
	qr, err := GenerateTrackingQR(n.FrontendURL, order.OrderNumber)
	if err != nil {
		log.Println("⚠️ Génération QR de suivi échouée:", err)
	} else {
		pdf, err = RenderInvoicePDF(n.FrontendURL, order.ID.String(), qr)
		if err != nil {
			log.Println("❌ Erreur génération PDF :", err)
			pdf = nil
		}
	}

	subject := "Confirmation de votre commande Lumera " + order.OrderNumber
	return SendConfirmationEmail(order.CustomerEmail, subject, html, pdf)
}
