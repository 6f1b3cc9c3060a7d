package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/illegalcall/palmistry/internal/config"
)

// DefaultCredits is granted when a completed session carries no usable credit count.
const DefaultCredits = 3

var (
	ErrNotConfigured    = errors.New("payments are not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMissingUser      = errors.New("checkout session has no user_id")
)

// Checkout opens hosted checkout sessions.
type Checkout interface {
	CreateSession(ctx context.Context, userID, email, origin string) (Session, error)
}

type Session struct {
	ID  string
	URL string
}

// StripeCheckout sells one fixed credit package.
type StripeCheckout struct {
	api *client.API
	cfg config.StripeConfig
}

func NewStripeCheckout(cfg config.StripeConfig) (*StripeCheckout, error) {
	return newStripeCheckout(cfg, nil)
}

// newStripeCheckout allows pointing the client at another API backend.
func newStripeCheckout(cfg config.StripeConfig, backends *stripe.Backends) (*StripeCheckout, error) {
	if cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}
	return &StripeCheckout{api: client.New(cfg.SecretKey, backends), cfg: cfg}, nil
}

func (s *StripeCheckout) CreateSession(ctx context.Context, userID, email, origin string) (Session, error) {
	origin = strings.TrimRight(origin, "/")
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.cfg.Currency),
				UnitAmount: stripe.Int64(s.cfg.PriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(s.cfg.ProductName),
					Description: stripe.String(fmt.Sprintf("%d palm analyses", s.cfg.Credits)),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(origin + "/upload?success=true"),
		CancelURL:         stripe.String(origin + "/upload?canceled=true"),
		ClientReferenceID: stripe.String(userID),
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	params.AddMetadata("credits", strconv.Itoa(s.cfg.Credits))

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

// WebhookVerifier checks Stripe-Signature headers.
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

func (v *WebhookVerifier) Configured() bool {
	return v != nil && v.secret != ""
}

// Verify authenticates the raw payload and decodes the event.
func (v *WebhookVerifier) Verify(payload []byte, signature string) (stripe.Event, error) {
	if !v.Configured() {
		return stripe.Event{}, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// CompletedCheckout is what a checkout.session.completed event grants.
type CompletedCheckout struct {
	SessionID       string
	PaymentIntentID *string
	AmountCents     *int64
	UserID          string
	Email           string
	Credits         int

	// DefaultedCredits is set when the metadata carried no usable count.
	DefaultedCredits bool
}

// ParseCompletedCheckout reads the session of a checkout.session.completed event.
// A missing or unusable credits entry grants DefaultCredits.
func ParseCompletedCheckout(event stripe.Event) (CompletedCheckout, error) {
	var sess stripe.CheckoutSession
	if event.Data == nil {
		return CompletedCheckout{}, fmt.Errorf("event %s has no data", event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return CompletedCheckout{}, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	userID := strings.TrimSpace(sess.Metadata["user_id"])
	if userID == "" {
		return CompletedCheckout{}, ErrMissingUser
	}

	out := CompletedCheckout{
		SessionID: sess.ID,
		UserID:    userID,
		Credits:   DefaultCredits,
	}
	if n, err := strconv.Atoi(strings.TrimSpace(sess.Metadata["credits"])); err == nil && n >= 1 {
		out.Credits = n
	} else {
		out.DefaultedCredits = true
	}
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		id := sess.PaymentIntent.ID
		out.PaymentIntentID = &id
	}
	if sess.AmountTotal > 0 {
		amount := sess.AmountTotal
		out.AmountCents = &amount
	}
	if sess.CustomerDetails != nil {
		out.Email = sess.CustomerDetails.Email
	}
	if out.Email == "" {
		out.Email = sess.CustomerEmail
	}
	return out, nil
}
