package orders

import (
	"context"
	"log"
	"sync"

	"lumera_back_end/internal/models"
)

// fanOutSideEffects lance les effets de bord post-commit — stock, coupon,
// notification, indexation — comme des tâches découplées : aucune ne peut
// bloquer ni annuler les autres, aucune ne remet en cause la commande déjà
// durable. Tous les échecs sont journalisés puis avalés.
func (p *Pipeline) fanOutSideEffects(ctx context.Context, order models.Order, items []models.OrderItem, detail models.CheckoutDetail) {
	var wg sync.WaitGroup

	// Décrément du stock, ligne par ligne : l'échec d'un produit ne bloque
	// ni les suivants ni l'acquittement de l'événement
	wg.Add(1)
	go func() {
		defer wg.Done()
		if p.Stock == nil {
			return
		}
		for _, item := range items {
			if err := p.Stock.Decrement(ctx, item.ProductID, item.Quantity, order.ID); err != nil {
				log.Printf("❌ Stock non décrémenté pour %s (commande %s): %v", item.ProductID, order.OrderNumber, err)
			}
		}
	}()

	// Comptabilité coupon : consultative, jamais transactionnelle avec la commande
	if detail.Coupon != nil && p.Coupons != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Coupons.RecordUsage(ctx, detail.Coupon.CouponID, order.ID, order.CustomerEmail, detail.Coupon.DiscountAmount)
			if err != nil {
				log.Printf("❌ Comptabilité coupon %s (commande %s) échouée: %v", detail.Coupon.Code, order.OrderNumber, err)
			}
		}()
	}

	// Confirmation client : une seule tentative, après persistance durable
	if p.Notif != nil && order.CustomerEmail != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Notif.SendOrderConfirmation(order, items); err != nil {
				log.Printf("❌ E-mail de confirmation %s (commande %s) échoué: %v", order.CustomerEmail, order.OrderNumber, err)
			}
		}()
	}

	// Indexation back-office
	if p.Indexer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Indexer.IndexOrder(order)
		}()
	}

	wg.Wait()
}
