package models

import "time"

const PaymentStatusCompleted = "completed"

// Payment records one completed checkout session.
type Payment struct {
	ID                    string    `json:"id" db:"id"`
	UserID                string    `json:"userId" db:"user_id"`
	StripeSessionID       string    `json:"stripeSessionId" db:"stripe_session_id"`
	StripePaymentIntentID *string   `json:"stripePaymentIntentId,omitempty" db:"stripe_payment_intent_id"`
	AmountCents           *int64    `json:"amountCents,omitempty" db:"amount_cents"`
	CreditsPurchased      int       `json:"creditsPurchased" db:"credits_purchased"`
	Status                string    `json:"status" db:"status"`
	CreatedAt             time.Time `json:"createdAt" db:"created_at"`
}
