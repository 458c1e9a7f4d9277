package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gocql/gocql"
	"github.com/redis/go-redis/v9"

	"lumera_back_end/internal/database"
)

const (
	sequenceKey  = "orders:sequence"
	sequenceName = "orders"

	// Marge appliquée au réamorçage : si Redis perd le compteur, on repart
	// au-delà du dernier point de sauvegarde Scylla. Des trous, jamais de
	// doublon ni de retour en arrière.
	sequenceGap = 1000
)

// Counter fournit la valeur suivante d'une séquence atomique.
type Counter interface {
	Next(ctx context.Context) (int64, error)
}

// SequenceStore persiste un point de reprise durable pour la séquence.
type SequenceStore interface {
	ReadSeed(ctx context.Context) (int64, error)
	WriteSeed(ctx context.Context, value int64) error
}

// Allocator produit les numéros de commande ORD-######. Le compteur Redis
// remplace l'ancien schéma "lire le dernier numéro et incrémenter", intenable
// sous livraisons webhook concurrentes.
type Allocator struct {
	counter Counter
	seeds   SequenceStore
}

func NewAllocator(counter Counter, seeds SequenceStore) *Allocator {
	return &Allocator{counter: counter, seeds: seeds}
}

// Next alloue le numéro suivant. Le point de reprise Scylla est mis à jour en
// best-effort : sa perte coûte au pire un trou de numérotation au redémarrage.
func (a *Allocator) Next(ctx context.Context) (string, error) {
	n, err := a.counter.Next(ctx)
	if err != nil {
		return "", fmt.Errorf("allocation numéro de commande: %w", err)
	}

	if a.seeds != nil {
		if err := a.seeds.WriteSeed(ctx, n); err != nil {
			log.Printf("⚠️ Sauvegarde séquence %d impossible: %v", n, err)
		}
	}

	return FormatOrderNumber(n), nil
}

// FormatOrderNumber met en forme un numéro lisible : ORD- + 6 chiffres.
func FormatOrderNumber(n int64) string {
	return fmt.Sprintf("ORD-%06d", n)
}

// --- Compteur Redis ---

// Sequencer est le sous-ensemble de commandes Redis dont le compteur a
// besoin; *redis.Client le satisfait.
type Sequencer interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

type RedisCounter struct {
	Client Sequencer
}

func (c *RedisCounter) Next(ctx context.Context) (int64, error) {
	return c.Client.Incr(ctx, sequenceKey).Result()
}

// EnsureSeed amorce le compteur Redis depuis le point de reprise Scylla si la
// clé n'existe pas encore (premier démarrage ou Redis vidé).
func (c *RedisCounter) EnsureSeed(ctx context.Context, seeds SequenceStore) error {
	exists, err := c.Client.Exists(ctx, sequenceKey).Result()
	if err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}

	seed, err := seeds.ReadSeed(ctx)
	if err != nil {
		return err
	}
	if seed > 0 {
		seed += sequenceGap
	}

	// SETNX : si un autre serveur amorce en même temps, le premier gagne
	if err := c.Client.SetNX(ctx, sequenceKey, seed, 0).Err(); err != nil {
		return err
	}
	log.Printf("🔢 Séquence commandes amorcée à %d", seed)
	return nil
}

// --- Point de reprise Scylla ---

type ScyllaSequenceStore struct{}

func NewScyllaSequenceStore() *ScyllaSequenceStore { return &ScyllaSequenceStore{} }

func (s *ScyllaSequenceStore) ReadSeed(ctx context.Context) (int64, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return 0, err
	}

	var value int64
	err = session.Query(
		`SELECT value FROM order_sequence WHERE name = ?`, sequenceName,
	).WithContext(ctx).Scan(&value)
	if errors.Is(err, gocql.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (s *ScyllaSequenceStore) WriteSeed(ctx context.Context, value int64) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	// Conditionnel pour ne jamais faire reculer le point de reprise
	previous := map[string]interface{}{}
	applied, err := session.Query(
		`UPDATE order_sequence SET value = ? WHERE name = ? IF value < ?`,
		value, sequenceName, value,
	).WithContext(ctx).MapScanCAS(previous)
	if err != nil {
		return err
	}

	// Non appliqué sans valeur précédente = ligne absente, première écriture
	if !applied && len(previous) == 0 {
		return session.Query(
			`INSERT INTO order_sequence (name, value) VALUES (?, ?) IF NOT EXISTS`,
			sequenceName, value,
		).WithContext(ctx).Exec()
	}
	return nil
}
