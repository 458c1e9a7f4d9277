package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"lumera_back_end/internal/database"
	"lumera_back_end/internal/models"
)

//
// --- INDEXATION DANS ELASTICSEARCH ---
//

// OrderIndex pousse les commandes vers l'index de recherche back-office.
type OrderIndex struct{}

func NewOrderIndex() *OrderIndex { return &OrderIndex{} }

// IndexOrder indexe une commande. Effet de bord best-effort du pipeline :
// tout échec est journalisé et avalé.
func (OrderIndex) IndexOrder(o models.Order) {
	if database.Elastic == nil {
		log.Println("⚠️ Elastic non initialisé, impossible d'indexer:", o.OrderNumber)
		return
	}

	data, _ := json.Marshal(o)
	req := esapi.IndexRequest{
		Index:      "orders",
		DocumentID: o.ID.String(),
		Body:       bytes.NewReader(data),
		Refresh:    "true", // rend la commande immédiatement cherchable
	}

	res, err := req.Do(context.Background(), database.Elastic)
	if err != nil {
		log.Println("❌ Erreur envoi Elastic:", err)
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Printf("⚠️ Elastic a renvoyé une erreur pour %s: %s", o.OrderNumber, res.String())
	} else {
		log.Printf("✅ Commande indexée dans Elasticsearch: %s", o.OrderNumber)
	}
}

//
// --- RECHERCHE DANS ELASTICSEARCH ---
//

// SearchOrders cherche des commandes par numéro, e-mail ou nom client.
func SearchOrders(query string) ([]map[string]interface{}, error) {
	if database.Elastic == nil {
		return nil, errors.New("client Elasticsearch non initialisé")
	}

	var buf bytes.Buffer
	q := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"order_number", "customer_email", "customer_name", "transaction_id"},
			},
		},
	}

	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, fmt.Errorf("erreur encodage requête: %v", err)
	}

	req := esapi.SearchRequest{
		Index: []string{"orders"},
		Body:  &buf,
	}
	res, err := req.Do(context.Background(), database.Elastic)
	if err != nil {
		return nil, fmt.Errorf("erreur requête Elastic: %v", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("erreur Elastic: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("erreur décodage réponse Elastic: %v", err)
	}

	results := make([]map[string]interface{}, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		results = append(results, hit.Source)
	}
	return results, nil
}
