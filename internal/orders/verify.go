package orders

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

// ErrNonAuthentifie — signature absente, invalide ou horodatage trop vieux.
// Le handler répond 400 : la passerelle ne doit PAS rejouer un événement
// forgé ou corrompu.
var ErrNonAuthentifie = errors.New("événement non authentifié")

// VerifyEvent authentifie le payload brut du webhook contre le secret partagé.
// Un secret vide est une erreur de configuration, jamais un mode passe-droit.
func VerifyEvent(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	if secret == "" {
		return stripe.Event{}, errors.New("STRIPE_WEBHOOK_SECRET manquant")
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, secret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrNonAuthentifie, err)
	}
	return event, nil
}
