package coupons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/redis/go-redis/v9"

	"lumera_back_end/internal/database"
	"lumera_back_end/internal/models"
)

// ErrCouponIntrouvable — code inconnu.
var ErrCouponIntrouvable = errors.New("coupon introuvable")

// CouponSource expose la lecture des coupons et de leur utilisation.
type CouponSource interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	CountUserUsage(ctx context.Context, couponID gocql.UUID, userEmail string) (int, error)
}

const validationCacheTTL = 30 * time.Second

// Validator évalue les règles d'un coupon contre un montant de panier.
// Résultat consultatif : le montant qui fait foi est celui figé dans la
// session de paiement au moment du checkout.
type Validator struct {
	Source CouponSource
	Cache  *redis.Client // optionnel
}

// Validate vérifie le code et calcule la réduction applicable.
func (v *Validator) Validate(ctx context.Context, code string, cartTotal float64, userEmail string) models.CouponValidation {
	cacheKey := fmt.Sprintf("coupon:validation:%s:%.2f:%s", strings.ToUpper(code), cartTotal, userEmail)
	if v.Cache != nil {
		if cached, err := v.Cache.Get(ctx, cacheKey).Result(); err == nil {
			var result models.CouponValidation
			if json.Unmarshal([]byte(cached), &result) == nil {
				return result
			}
		}
	}

	result := v.validate(ctx, code, cartTotal, userEmail)

	if v.Cache != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := v.Cache.Set(ctx, cacheKey, data, validationCacheTTL).Err(); err != nil {
				log.Printf("⚠️ Cache validation coupon indisponible: %v", err)
			}
		}
	}
	return result
}

func (v *Validator) validate(ctx context.Context, code string, cartTotal float64, userEmail string) models.CouponValidation {
	coupon, err := v.Source.GetByCode(ctx, code)
	if errors.Is(err, ErrCouponIntrouvable) {
		return models.CouponValidation{IsValid: false, ErrorMessage: "Code coupon invalide"}
	}
	if err != nil {
		log.Printf("❌ Lecture coupon %s: %v", code, err)
		return models.CouponValidation{IsValid: false, ErrorMessage: "Erreur serveur"}
	}

	now := time.Now()

	if !coupon.IsActive {
		return models.CouponValidation{IsValid: false, ErrorMessage: "Ce coupon n'est plus actif"}
	}

	if now.Before(coupon.StartsAt) {
		return models.CouponValidation{IsValid: false, ErrorMessage: "Ce coupon n'est pas encore valide"}
	}

	if now.After(coupon.ExpiresAt) {
		return models.CouponValidation{IsValid: false, ErrorMessage: "Ce coupon a expiré"}
	}

	if coupon.MaxUses > 0 && coupon.UsedCount >= coupon.MaxUses {
		return models.CouponValidation{IsValid: false, ErrorMessage: "Ce coupon a atteint sa limite d'utilisation"}
	}

	if cartTotal < coupon.MinAmount {
		return models.CouponValidation{
			IsValid:      false,
			ErrorMessage: fmt.Sprintf("Montant minimum requis: %.2f€", coupon.MinAmount),
		}
	}

	// Limite par client
	if coupon.MaxUsesPerUser > 0 && userEmail != "" {
		if used, err := v.Source.CountUserUsage(ctx, coupon.ID, userEmail); err == nil {
			if used >= coupon.MaxUsesPerUser {
				return models.CouponValidation{
					IsValid:      false,
					ErrorMessage: "Vous avez déjà utilisé ce coupon le nombre maximum de fois",
				}
			}
		}
	}

	// Calculer la réduction
	var discount float64
	switch coupon.Type {
	case "percentage":
		discount = cartTotal * (coupon.Value / 100)
		if coupon.MaxAmount != nil && discount > *coupon.MaxAmount {
			discount = *coupon.MaxAmount
		}
	case "fixed":
		discount = coupon.Value
		if discount > cartTotal {
			discount = cartTotal
		}
	case "free_shipping":
		discount = 0 // Géré séparément dans le checkout
	}

	return models.CouponValidation{
		IsValid:  true,
		Discount: discount,
		Type:     coupon.Type,
		Code:     coupon.Code,
		CouponID: coupon.ID.String(),
	}
}

// --- Source Scylla ---

type ScyllaCouponSource struct{}

func NewScyllaCouponSource() *ScyllaCouponSource { return &ScyllaCouponSource{} }

func (s *ScyllaCouponSource) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	var c models.Coupon
	err = session.Query(
		`SELECT id, code, type, value, min_amount, max_amount, max_uses, used_count,
		        max_uses_per_user, applicable_to_all, expires_at, starts_at, is_active
		 FROM coupons WHERE code = ? LIMIT 1`,
		strings.ToUpper(code),
	).WithContext(ctx).Scan(
		&c.ID, &c.Code, &c.Type, &c.Value, &c.MinAmount,
		&c.MaxAmount, &c.MaxUses, &c.UsedCount, &c.MaxUsesPerUser,
		&c.ApplicableToAll, &c.ExpiresAt, &c.StartsAt, &c.IsActive,
	)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrCouponIntrouvable
	}
	if err != nil {
		return nil, err
	}

	// Réconciliation des deux formes de comptage : la table de compteurs
	// moderne prime sur la colonne héritée quand elle est plus avancée
	var counted int64
	err = session.Query(
		`SELECT used FROM coupon_counters WHERE coupon_id = ?`, c.ID,
	).WithContext(ctx).Scan(&counted)
	if err == nil && int(counted) > c.UsedCount {
		c.UsedCount = int(counted)
	}

	return &c, nil
}

func (s *ScyllaCouponSource) CountUserUsage(ctx context.Context, couponID gocql.UUID, userEmail string) (int, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return 0, err
	}

	// Filtrage intra-partition : la partition est déjà ciblée par coupon_id
	var count int
	err = session.Query(
		`SELECT COUNT(*) FROM coupon_usage WHERE coupon_id = ? AND user_email = ? ALLOW FILTERING`,
		couponID, userEmail,
	).WithContext(ctx).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
