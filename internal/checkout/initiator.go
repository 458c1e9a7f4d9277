package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"

	"lumera_back_end/internal/inventory"
	"lumera_back_end/internal/models"
)

// StockError nomme le produit fautif et la quantité réellement disponible.
// Une seule ligne en défaut rejette toute l'initiation : pas de session
// partielle.
type StockError struct {
	ProductID string
	Product   string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("stock insuffisant pour %s: %d demandés, %d disponibles", e.Product, e.Requested, e.Available)
}

// ValidationError — requête client invalide (panier vide, produit inconnu,
// coupon refusé). Le handler répond 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// StockReader lit l'état courant d'un produit.
type StockReader interface {
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
}

// CouponValidator évalue un code promo contre le sous-total courant.
type CouponValidator interface {
	Validate(ctx context.Context, code string, cartTotal float64, userEmail string) models.CouponValidation
}

// SessionLine est une ligne figée dans la session de paiement.
type SessionLine struct {
	ProductID  string
	Name       string
	UnitAmount int64 // centimes
	Quantity   int64
}

// SessionSpec décrit la session à créer côté passerelle.
type SessionSpec struct {
	Lines         []SessionLine
	CustomerEmail string
	CustomerName  string
	Coupon        *models.CouponApplication
}

// Gateway crée la session de paiement hébergée et rend l'URL de redirection.
type Gateway interface {
	CreateSession(ctx context.Context, spec SessionSpec) (string, error)
}

// InitiateRequest est le corps attendu sur POST /api/checkout.
type InitiateRequest struct {
	Items         []models.CartItem `json:"items" binding:"required"`
	CouponCode    string            `json:"coupon_code"`
	CustomerEmail string            `json:"customer_email" binding:"required,email"`
	CustomerName  string            `json:"customer_name"`
}

// Initiator valide le panier contre le stock vivant, fige le coupon et crée
// la session de paiement. C'est le SEUL endroit où le montant de la remise
// est calculé : le webhook relira le montant figé sans jamais le recalculer,
// pour que des règles de coupon modifiées entre checkout et paiement ne
// puissent pas faire diverger la commande.
type Initiator struct {
	Stock   StockReader
	Coupons CouponValidator
	Gateway Gateway
}

// Initiate rend l'URL de redirection vers la page de paiement hébergée.
func (i *Initiator) Initiate(ctx context.Context, req InitiateRequest) (string, error) {
	if len(req.Items) == 0 {
		return "", &ValidationError{Message: "Panier vide"}
	}

	var subtotal float64
	lines := make([]SessionLine, 0, len(req.Items))

	// 1. Valider chaque ligne contre le stock courant
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return "", &ValidationError{Message: "Quantité invalide pour le produit " + item.ProductID}
		}

		product, err := i.Stock.GetProduct(ctx, item.ProductID)
		if errors.Is(err, inventory.ErrProduitIntrouvable) {
			return "", &ValidationError{Message: "Produit introuvable: " + item.ProductID}
		}
		if err != nil {
			return "", fmt.Errorf("lecture produit %s: %w", item.ProductID, err)
		}

		if product.Stock < item.Quantity {
			return "", &StockError{
				ProductID: item.ProductID,
				Product:   product.Name,
				Available: product.Stock,
				Requested: item.Quantity,
			}
		}

		// Prix et nom vivants : le panier client n'est pas une source de vérité
		subtotal += product.Price * float64(item.Quantity)
		lines = append(lines, SessionLine{
			ProductID:  item.ProductID,
			Name:       product.Name,
			UnitAmount: int64(math.Round(product.Price * 100)),
			Quantity:   int64(item.Quantity),
		})
	}

	// 2. Figer le coupon (montant calculé UNE fois, ici)
	var coupon *models.CouponApplication
	if req.CouponCode != "" {
		validation := i.Coupons.Validate(ctx, req.CouponCode, subtotal, req.CustomerEmail)
		if !validation.IsValid {
			return "", &ValidationError{Message: validation.ErrorMessage}
		}
		if validation.Discount > 0 {
			coupon = &models.CouponApplication{
				CouponID:       validation.CouponID,
				Code:           validation.Code,
				DiscountAmount: validation.Discount,
			}
		}
	}

	// 3. Créer la session côté passerelle
	url, err := i.Gateway.CreateSession(ctx, SessionSpec{
		Lines:         lines,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Coupon:        coupon,
	})
	if err != nil {
		return "", fmt.Errorf("création session de paiement: %w", err)
	}
	return url, nil
}
