package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gocql/gocql"

	"lumera_back_end/internal/models"
)

// StockAdjuster décrémente le stock d'un produit. Effet de bord best-effort :
// un échec est journalisé, jamais propagé.
type StockAdjuster interface {
	Decrement(ctx context.Context, productID string, quantity int, orderID gocql.UUID) error
}

// CouponLedger comptabilise une utilisation de coupon, exactement une fois
// par couple (coupon, commande), quel que soit le schéma de stockage.
type CouponLedger interface {
	RecordUsage(ctx context.Context, couponID string, orderID gocql.UUID, customerEmail string, amount float64) error
}

// Notifier envoie la confirmation de commande. Une seule tentative, jamais
// avant que l'en-tête soit durable.
type Notifier interface {
	SendOrderConfirmation(order models.Order, items []models.OrderItem) error
}

// OrderIndexer pousse la commande vers l'index de recherche back-office.
type OrderIndexer interface {
	IndexOrder(order models.Order)
}

// Pipeline matérialise une commande durable à partir d'un événement de
// paiement vérifié. Toute la coordination passe par le datastore : aucun
// état partagé entre deux livraisons d'événements.
type Pipeline struct {
	Store   OrderStore
	Numbers *Allocator
	Stock   StockAdjuster
	Coupons CouponLedger
	Notif   Notifier
	Indexer OrderIndexer // optionnel
}

// ProcessCheckoutCompleted traite un événement checkout.session.completed.
// Rejouable sans risque : la garde d'idempotence puis la réservation LWT
// garantissent au plus une commande par transaction_id. Seul l'échec de
// persistance de l'en-tête est propagé (→ 500, la passerelle rejouera);
// la relivraison reprend alors la réservation laissée en place et réécrit
// l'en-tête sous le même numéro. Tout le reste est toléré ou best-effort.
func (p *Pipeline) ProcessCheckoutCompleted(ctx context.Context, detail models.CheckoutDetail) (*models.Order, error) {
	if detail.TransactionID == "" {
		return nil, errors.New("événement sans transaction_id")
	}

	// 1. Garde d'idempotence — avant TOUT effet de bord
	existing, err := p.Store.FindByTransaction(ctx, detail.TransactionID)
	if err == nil {
		log.Printf("🔁 Transaction %s déjà traitée (commande %s), on ignore", detail.TransactionID, existing.OrderNumber)
		return existing, nil
	}
	if !errors.Is(err, ErrOrderIntrouvable) {
		return nil, fmt.Errorf("garde d'idempotence: %w", err)
	}

	// 2. Réservation orpheline : une livraison précédente a réservé le
	// transaction_id mais l'en-tête n'a jamais été écrit. On reprend la
	// matérialisation avec l'id et le numéro déjà réservés — jamais de
	// seconde commande, jamais de second numéro.
	orderID, orderNumber, err := p.Store.FindReservation(ctx, detail.TransactionID)
	if err == nil {
		log.Printf("🔁 Reprise de la commande %s (%s) : en-tête manquant", orderNumber, detail.TransactionID)
		return p.materialize(ctx, orderID, orderNumber, detail)
	}
	if !errors.Is(err, ErrOrderIntrouvable) {
		return nil, fmt.Errorf("lecture réservation: %w", err)
	}

	// 3. Allocation du numéro de commande
	orderNumber, err = p.Numbers.Next(ctx)
	if err != nil {
		return nil, err
	}

	orderID = gocql.TimeUUID()

	// 4. Réservation du transaction_id — résout la course entre deux
	// livraisons concurrentes du même événement
	applied, err := p.Store.ReserveTransaction(ctx, detail.TransactionID, orderID, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("réservation transaction: %w", err)
	}
	if !applied {
		// Une livraison concurrente a gagné : pas une erreur
		winner, err := p.Store.FindByTransaction(ctx, detail.TransactionID)
		if errors.Is(err, ErrOrderIntrouvable) {
			// Le gagnant écrit encore son en-tête : la passerelle rejouera
			// et la relivraison reprendra depuis la réservation
			return nil, fmt.Errorf("matérialisation concurrente en cours pour %s", detail.TransactionID)
		}
		if err != nil {
			return nil, fmt.Errorf("relecture après course perdue: %w", err)
		}
		log.Printf("🔁 Course perdue sur %s, commande existante %s", detail.TransactionID, winner.OrderNumber)
		return winner, nil
	}

	return p.materialize(ctx, orderID, orderNumber, detail)
}

// materialize écrit l'en-tête puis tout ce qui en dépend. Appelée avec un
// couple (id, numéro) réservé — qu'il vienne d'être alloué ou qu'il soit
// repris d'une livraison interrompue.
func (p *Pipeline) materialize(ctx context.Context, orderID gocql.UUID, orderNumber string, detail models.CheckoutDetail) (*models.Order, error) {
	order := p.buildOrder(orderID, orderNumber, detail)

	// En-tête de commande : seule écriture fatale du pipeline. La
	// réservation reste en place, la relivraison reprendra ici.
	if err := p.Store.InsertOrder(ctx, &order); err != nil {
		return nil, fmt.Errorf("insertion commande %s: %w", orderNumber, err)
	}
	log.Printf("✅ Commande %s créée (%s, %.2f€)", orderNumber, detail.TransactionID, order.Total)

	// Lignes : une référence catalogue irrésoluble n'avorte pas la commande
	items := p.insertItems(ctx, &order, detail.Lines)

	// Adresses (optionnelles; leur absence n'est pas une erreur)
	p.insertAddresses(ctx, &order, detail)

	// Première entrée d'historique
	p.appendHistory(ctx, orderID, nil, models.FulfillmentUnfulfilled, "commande créée par webhook")

	// Effets de bord découplés : stock, coupon, notification, indexation
	p.fanOutSideEffects(ctx, order, items, detail)

	return &order, nil
}

func (p *Pipeline) buildOrder(orderID gocql.UUID, orderNumber string, detail models.CheckoutDetail) models.Order {
	order := models.Order{
		ID:                orderID,
		OrderNumber:       orderNumber,
		CustomerEmail:     detail.CustomerEmail,
		CustomerName:      detail.CustomerName,
		PaymentStatus:     detail.PaymentStatus,
		FulfillmentStatus: models.FulfillmentUnfulfilled,
		Subtotal:          fromCents(detail.AmountSubtotal),
		Tax:               fromCents(detail.AmountTax),
		Shipping:          fromCents(detail.AmountShipping),
		Total:             fromCents(detail.AmountTotal),
		TransactionID:     detail.TransactionID,
		SessionID:         detail.SessionID,
		CreatedAt:         time.Now(),
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = models.PaymentStatusPaid
	}

	// Remise : le montant figé au checkout fait foi; le total de la
	// passerelle n'est qu'un repli sans coupon figé
	if detail.Coupon != nil {
		order.Discount = round2(detail.Coupon.DiscountAmount)
		order.CouponID = detail.Coupon.CouponID
		order.CouponCode = detail.Coupon.Code
	} else {
		order.Discount = fromCents(detail.AmountDiscount)
	}

	return order
}

func (p *Pipeline) insertItems(ctx context.Context, order *models.Order, lines []models.CheckoutLine) []models.OrderItem {
	var items []models.OrderItem
	for _, line := range lines {
		if line.ProductID == "" {
			log.Printf("⚠️ Ligne '%s' sans référence produit — ignorée (commande %s)", line.Name, order.OrderNumber)
			continue
		}

		item := models.OrderItem{
			ItemID:      gocql.TimeUUID(),
			OrderID:     order.ID,
			ProductID:   line.ProductID,
			ProductName: line.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		}
		if err := p.Store.InsertItem(ctx, &item); err != nil {
			// L'en-tête reste la source de vérité; la commande incomplète
			// sera visible comme telle au back-office
			log.Printf("❌ Insertion ligne %s (commande %s) échouée: %v", line.ProductID, order.OrderNumber, err)
			continue
		}
		items = append(items, item)
	}
	return items
}

func (p *Pipeline) insertAddresses(ctx context.Context, order *models.Order, detail models.CheckoutDetail) {
	insert := func(kind string, d *models.AddressDetail) {
		if d == nil {
			return
		}
		a := models.Address{
			OrderID:    order.ID,
			Name:       d.Name,
			Line1:      d.Line1,
			Line2:      d.Line2,
			City:       d.City,
			State:      d.State,
			PostalCode: d.PostalCode,
			Country:    d.Country,
			Phone:      d.Phone,
		}
		if a.Name == "" {
			a.Name = order.CustomerName
		}
		if err := p.Store.InsertAddress(ctx, kind, &a); err != nil {
			log.Printf("❌ Insertion adresse %s (commande %s) échouée: %v", kind, order.OrderNumber, err)
		}
	}
	insert(AddressShipping, detail.Shipping)
	insert(AddressBilling, detail.Billing)
}

func (p *Pipeline) appendHistory(ctx context.Context, orderID gocql.UUID, from *string, to, note string) {
	entry := models.OrderHistoryEntry{
		EntryID:    gocql.TimeUUID(),
		OrderID:    orderID,
		StatusFrom: from,
		StatusTo:   to,
		Note:       note,
		CreatedAt:  time.Now(),
	}
	if err := p.Store.AppendHistory(ctx, &entry); err != nil {
		log.Printf("❌ Historique commande %v échoué: %v", orderID, err)
	}
}

// ProcessPaymentSucceeded traite payment_intent.succeeded : ne fait que
// transitionner le statut d'une commande existante, sans jamais en créer
// une seconde. Transaction inconnue = acquittée et ignorée (l'événement de
// session porte seul la création).
func (p *Pipeline) ProcessPaymentSucceeded(ctx context.Context, transactionID string) error {
	order, err := p.Store.FindByTransaction(ctx, transactionID)
	if errors.Is(err, ErrOrderIntrouvable) {
		log.Printf("ℹ️ payment_intent.succeeded pour %s sans commande — ignoré", transactionID)
		return nil
	}
	if err != nil {
		return err
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		return nil
	}

	if err := p.Store.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusPaid); err != nil {
		return fmt.Errorf("transition paiement commande %s: %w", order.OrderNumber, err)
	}
	from := order.PaymentStatus
	p.appendHistory(ctx, order.ID, &from, models.PaymentStatusPaid, "paiement confirmé par la passerelle")
	log.Printf("💳 Commande %s marquée payée", order.OrderNumber)
	return nil
}
