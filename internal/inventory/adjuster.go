package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gocql/gocql"

	"lumera_back_end/internal/database"
	"lumera_back_end/internal/models"
)

// ErrProduitIntrouvable — référence catalogue inconnue.
var ErrProduitIntrouvable = errors.New("produit introuvable")

const casAttempts = 3

// ScyllaStore lit et ajuste le stock du keyspace produits.
type ScyllaStore struct{}

func NewScyllaStore() *ScyllaStore { return &ScyllaStore{} }

// GetProduct charge un produit pour la validation de stock au checkout.
func (s *ScyllaStore) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	id, err := gocql.ParseUUID(productID)
	if err != nil {
		return nil, fmt.Errorf("%w: id invalide %s", ErrProduitIntrouvable, productID)
	}

	session, err := database.GetProductsSession()
	if err != nil {
		return nil, err
	}

	var p models.Product
	p.ID = id
	err = session.Query(
		`SELECT name, price, stock FROM products WHERE product_id = ?`, id,
	).WithContext(ctx).Scan(&p.Name, &p.Price, &p.Stock)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrProduitIntrouvable
	}
	if err != nil {
		return nil, fmt.Errorf("lecture produit %s: %w", productID, err)
	}
	return &p, nil
}

// Decrement retire quantity unités du stock d'un produit, après qu'une ligne
// de commande a été durablement insérée. Écriture conditionnelle avec
// quelques reprises : les livraisons webhook sont concurrentes, contrairement
// aux ajustements d'un écran d'admin. Un stock insuffisant au moment du
// décrément est plancher à zéro et journalisé — on ne bloque jamais une
// commande déjà payée pour un stock en retard.
func (s *ScyllaStore) Decrement(ctx context.Context, productID string, quantity int, orderID gocql.UUID) error {
	id, err := gocql.ParseUUID(productID)
	if err != nil {
		return fmt.Errorf("id produit invalide %s: %w", productID, err)
	}

	session, err := database.GetProductsSession()
	if err != nil {
		return err
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		var currentStock int
		var name string
		err := session.Query(
			`SELECT stock, name FROM products WHERE product_id = ?`, id,
		).WithContext(ctx).Scan(&currentStock, &name)
		if errors.Is(err, gocql.ErrNotFound) {
			return ErrProduitIntrouvable
		}
		if err != nil {
			return fmt.Errorf("lecture stock %s: %w", productID, err)
		}

		newStock := currentStock - quantity
		if newStock < 0 {
			log.Printf("⚠️ Stock insuffisant pour %s (%d demandés, %d restants) — plancher à 0", name, quantity, currentStock)
			newStock = 0
		}

		previous := map[string]interface{}{}
		applied, err := session.Query(
			`UPDATE products SET stock = ?, updated_at = ? WHERE product_id = ? IF stock = ?`,
			newStock, time.Now(), id, currentStock,
		).WithContext(ctx).MapScanCAS(previous)
		if err != nil {
			return fmt.Errorf("mise à jour stock %s: %w", productID, err)
		}
		if !applied {
			// Écriture concurrente entre la lecture et le CAS : on reprend
			continue
		}

		s.recordMovement(ctx, session, id, quantity, currentStock, newStock, orderID)
		return nil
	}

	return fmt.Errorf("décrément stock %s: conflit persistant après %d essais", productID, casAttempts)
}

// recordMovement trace le mouvement de stock pour l'audit. Best-effort.
func (s *ScyllaStore) recordMovement(ctx context.Context, session *gocql.Session, productID gocql.UUID, qty, prev, next int, orderID gocql.UUID) {
	movement := models.StockMovement{
		ID:        gocql.TimeUUID(),
		ProductID: productID,
		Type:      "sale",
		Quantity:  qty,
		PrevStock: prev,
		NewStock:  next,
		Reason:    "commande client",
		OrderID:   &orderID,
		CreatedAt: time.Now(),
	}

	err := session.Query(
		`INSERT INTO stock_movements (product_id, created_at, movement_id, type, quantity, prev_stock, new_stock, reason, order_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		movement.ProductID, movement.CreatedAt, movement.ID, movement.Type,
		movement.Quantity, movement.PrevStock, movement.NewStock, movement.Reason, movement.OrderID,
	).WithContext(ctx).Exec()
	if err != nil {
		log.Printf("⚠️ Mouvement de stock non tracé pour %s: %v", productID, err)
	}
}
