package payments

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/illegalcall/palmistry/internal/config"
)

const whsec = "whsec_test_secret"

func checkoutEvent(t *testing.T, metadata map[string]string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":     "evt_1",
		"object": "event",
		"type":   "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":               "cs_test_1",
				"object":           "checkout.session",
				"payment_intent":   "pi_1",
				"amount_total":     1999,
				"metadata":         metadata,
				"customer_details": map[string]any{"email": "buyer@example.com"},
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func sign(payload []byte, secret string, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	}).Header
}

func TestWebhookVerifier(t *testing.T) {
	v := NewWebhookVerifier(whsec)
	payload := checkoutEvent(t, map[string]string{"user_id": "u1", "credits": "5"})

	event, err := v.Verify(payload, sign(payload, whsec, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "checkout.session.completed", string(event.Type))

	_, err = v.Verify(payload, sign(payload, "whsec_other", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = v.Verify(payload, sign(payload, whsec, time.Now().Add(-10*time.Minute)))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	tampered := checkoutEvent(t, map[string]string{"user_id": "u1", "credits": "500"})
	_, err = v.Verify(tampered, sign(payload, whsec, time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = v.Verify(payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = NewWebhookVerifier("").Verify(payload, "t=1,v1=00")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseCompletedCheckout(t *testing.T) {
	v := NewWebhookVerifier(whsec)
	parse := func(metadata map[string]string) (CompletedCheckout, error) {
		payload := checkoutEvent(t, metadata)
		event, err := v.Verify(payload, sign(payload, whsec, time.Now()))
		require.NoError(t, err)
		return ParseCompletedCheckout(event)
	}

	got, err := parse(map[string]string{"user_id": "u1", "credits": "5"})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", got.SessionID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, 5, got.Credits)
	assert.False(t, got.DefaultedCredits)
	require.NotNil(t, got.PaymentIntentID)
	assert.Equal(t, "pi_1", *got.PaymentIntentID)
	require.NotNil(t, got.AmountCents)
	assert.Equal(t, int64(1999), *got.AmountCents)
	assert.Equal(t, "buyer@example.com", got.Email)

	for _, credits := range []string{"", "abc", "0", "-2"} {
		meta := map[string]string{"user_id": "u1"}
		if credits != "" {
			meta["credits"] = credits
		}
		got, err := parse(meta)
		require.NoError(t, err)
		assert.Equal(t, DefaultCredits, got.Credits, credits)
		assert.True(t, got.DefaultedCredits)
	}

	_, err = parse(map[string]string{"credits": "5"})
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestCreateSession(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	c, err := newStripeCheckout(config.StripeConfig{
		SecretKey:   "sk_test_1",
		PriceCents:  1999,
		Currency:    "pln",
		Credits:     3,
		ProductName: "Palm reading package",
	}, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	require.NoError(t, err)

	sess, err := c.CreateSession(context.Background(), "u1", "a@b.c", "https://palm.example/")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", sess.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", sess.URL)

	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "u1", form.Get("metadata[user_id]"))
	assert.Equal(t, "3", form.Get("metadata[credits]"))
	assert.Equal(t, "https://palm.example/upload?success=true", form.Get("success_url"))
	assert.Equal(t, "https://palm.example/upload?canceled=true", form.Get("cancel_url"))
	assert.Equal(t, "1999", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "pln", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "a@b.c", form.Get("customer_email"))
}

func TestNewStripeCheckoutRequiresKey(t *testing.T) {
	_, err := NewStripeCheckout(config.StripeConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
