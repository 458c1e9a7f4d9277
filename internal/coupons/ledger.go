package coupons

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gocql/gocql"

	"lumera_back_end/internal/database"
	"lumera_back_end/internal/models"
)

// UsageStore est le stockage de la comptabilité coupon : la trace
// d'utilisation conditionnelle et les deux formes de compteur.
type UsageStore interface {
	// InsertUsage écrit la trace (coupon, commande) si elle n'existe pas
	// encore. false = déjà tracée par une livraison précédente.
	InsertUsage(ctx context.Context, usage models.CouponUsage) (bool, error)

	// DeleteUsage efface la trace — compensation quand aucun compteur n'a
	// pu être incrémenté, pour qu'une relivraison retente tout.
	DeleteUsage(ctx context.Context, couponID, orderID gocql.UUID) error

	// IncrementCounter incrémente la table de compteurs moderne.
	IncrementCounter(ctx context.Context, couponID gocql.UUID) error

	// IncrementLegacyCount incrémente la colonne used_count héritée.
	IncrementLegacyCount(ctx context.Context, couponID gocql.UUID) error
}

// Ledger comptabilise les utilisations de coupons : exactement une fois par
// couple (coupon, commande), quel que soit le nombre de relivraisons de
// l'événement. Les deux formes historiques de comptage — table de compteurs
// et colonne used_count sur la ligne coupon — sont réconciliées ICI; aucun
// appelant ne branche sur le schéma présent.
type Ledger struct {
	Store UsageStore
}

func NewLedger() *Ledger { return &Ledger{Store: NewScyllaUsageStore()} }

func (l *Ledger) RecordUsage(ctx context.Context, couponID string, orderID gocql.UUID, customerEmail string, amount float64) error {
	id, err := gocql.ParseUUID(couponID)
	if err != nil {
		return fmt.Errorf("id coupon invalide %s: %w", couponID, err)
	}

	// Trace d'utilisation conditionnelle : c'est elle qui porte le
	// "exactement une fois" — si la ligne existe déjà, la relivraison
	// s'arrête ici sans toucher au compteur
	applied, err := l.Store.InsertUsage(ctx, models.CouponUsage{
		CouponID:       id,
		OrderID:        orderID,
		UserEmail:      customerEmail,
		DiscountAmount: amount,
		UsedAt:         time.Now(),
	})
	if err != nil {
		return fmt.Errorf("trace utilisation coupon %s: %w", couponID, err)
	}
	if !applied {
		log.Printf("🔁 Utilisation coupon %s déjà comptée pour la commande %v", couponID, orderID)
		return nil
	}

	// Forme moderne : table de compteurs
	cerr := l.Store.IncrementCounter(ctx, id)
	if cerr == nil {
		return nil
	}
	log.Printf("⚠️ Compteur coupon indisponible pour %s, repli sur used_count: %v", couponID, cerr)

	// Forme héritée : colonne used_count sur la ligne coupon
	lerr := l.Store.IncrementLegacyCount(ctx, id)
	if lerr == nil {
		return nil
	}

	// Aucun compteur incrémenté : on efface la trace pour que la prochaine
	// livraison retente la comptabilité entière au lieu de s'arrêter à la
	// garde avec un compteur définitivement en retard
	if derr := l.Store.DeleteUsage(ctx, id, orderID); derr != nil {
		log.Printf("❌ Compensation trace coupon %s impossible: %v", couponID, derr)
	}
	return fmt.Errorf("comptabilité coupon %s: %w", couponID, lerr)
}

// --- Stockage Scylla ---

type ScyllaUsageStore struct{}

func NewScyllaUsageStore() *ScyllaUsageStore { return &ScyllaUsageStore{} }

func (s *ScyllaUsageStore) InsertUsage(ctx context.Context, u models.CouponUsage) (bool, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return false, err
	}

	previous := map[string]interface{}{}
	return session.Query(
		`INSERT INTO coupon_usage (coupon_id, order_id, user_email, discount_amount, used_at)
		 VALUES (?, ?, ?, ?, ?) IF NOT EXISTS`,
		u.CouponID, u.OrderID, u.UserEmail, u.DiscountAmount, u.UsedAt,
	).WithContext(ctx).MapScanCAS(previous)
}

func (s *ScyllaUsageStore) DeleteUsage(ctx context.Context, couponID, orderID gocql.UUID) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	return session.Query(
		`DELETE FROM coupon_usage WHERE coupon_id = ? AND order_id = ?`,
		couponID, orderID,
	).WithContext(ctx).Exec()
}

func (s *ScyllaUsageStore) IncrementCounter(ctx context.Context, couponID gocql.UUID) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	return session.Query(
		`UPDATE coupon_counters SET used = used + 1 WHERE coupon_id = ?`, couponID,
	).WithContext(ctx).Exec()
}

func (s *ScyllaUsageStore) IncrementLegacyCount(ctx context.Context, couponID gocql.UUID) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	var usedCount int
	if err := session.Query(
		`SELECT used_count FROM coupons WHERE id = ?`, couponID,
	).WithContext(ctx).Scan(&usedCount); err != nil {
		return fmt.Errorf("lecture used_count coupon %s: %w", couponID, err)
	}

	return session.Query(
		`UPDATE coupons SET used_count = ?, updated_at = ? WHERE id = ?`,
		usedCount+1, time.Now(), couponID,
	).WithContext(ctx).Exec()
}
