package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/illegalcall/palmistry/internal/models"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNotFound            = errors.New("not found")
)

// Store is the persistence layer for profiles, analyses and payments.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Credits returns the caller's balance. A missing profile is ErrNotFound.
func (s *Store) Credits(ctx context.Context, userID string) (int, error) {
	var credits int
	err := s.db.GetContext(ctx, &credits, `SELECT analysis_credits FROM profiles WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read credits: %w", err)
	}
	return credits, nil
}

// EnsureProfile creates the profile with zero credits if it does not exist yet.
func (s *Store) EnsureProfile(ctx context.Context, userID string) (models.Profile, error) {
	var p models.Profile
	err := s.db.GetContext(ctx, &p, `
		INSERT INTO profiles (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, analysis_credits, created_at`, userID)
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return p, nil
}

// NewAnalysis is what SaveAnalysis persists.
type NewAnalysis struct {
	UserID          string
	ImageURL        string
	AdditionalNotes string
	Result          models.JSONB
	Language        string
}

// SaveAnalysis spends one credit and inserts the analysis in one transaction.
// When no credit is left at commit time nothing is written and
// ErrInsufficientCredits is returned.
func (s *Store) SaveAnalysis(ctx context.Context, a NewAnalysis) (id string, remaining int, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.GetContext(ctx, &remaining, `
		UPDATE profiles SET analysis_credits = analysis_credits - 1
		WHERE user_id = $1 AND analysis_credits >= 1
		RETURNING analysis_credits`, a.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, ErrInsufficientCredits
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to deduct credit: %w", err)
	}

	err = tx.GetContext(ctx, &id, `
		INSERT INTO analyses (user_id, image_url, additional_notes, analysis_result, language)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`, a.UserID, a.ImageURL, a.AdditionalNotes, a.Result, a.Language)
	if err != nil {
		return "", 0, fmt.Errorf("failed to insert analysis: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("failed to commit analysis: %w", err)
	}
	return id, remaining, nil
}

const analysisColumns = `id, user_id, image_url, additional_notes, analysis_result, language, created_at`

// ListAnalyses returns the user's analyses, newest first.
func (s *Store) ListAnalyses(ctx context.Context, userID string) ([]models.Analysis, error) {
	analyses := []models.Analysis{}
	err := s.db.SelectContext(ctx, &analyses,
		`SELECT `+analysisColumns+` FROM analyses WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return analyses, nil
}

// GetAnalysis returns one analysis if it belongs to userID.
func (s *Store) GetAnalysis(ctx context.Context, userID, id string) (models.Analysis, error) {
	var a models.Analysis
	err := s.db.GetContext(ctx, &a,
		`SELECT `+analysisColumns+` FROM analyses WHERE id = $1 AND user_id = $2`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Analysis{}, ErrNotFound
	}
	if err != nil {
		return models.Analysis{}, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// RecordPurchase stores the payment and credits the user exactly once per
// checkout session. On success p carries its new id and timestamp; applied is
// false when the session was already recorded.
func (s *Store) RecordPurchase(ctx context.Context, p *models.Payment) (applied bool, balance int, err error) {
	if p.Status == "" {
		p.Status = models.PaymentStatusCompleted
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO payments (user_id, stripe_session_id, stripe_payment_intent_id, amount_cents, credits_purchased, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (stripe_session_id) DO NOTHING
		RETURNING id, created_at`,
		p.UserID, p.StripeSessionID, p.StripePaymentIntentID, p.AmountCents, p.CreditsPurchased, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		if err = tx.Commit(); err != nil {
			return false, 0, fmt.Errorf("failed to commit: %w", err)
		}
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to insert payment: %w", err)
	}

	err = tx.GetContext(ctx, &balance, `
		INSERT INTO profiles (user_id, analysis_credits) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET analysis_credits = profiles.analysis_credits + EXCLUDED.analysis_credits
		RETURNING analysis_credits`, p.UserID, p.CreditsPurchased)
	if err != nil {
		return false, 0, fmt.Errorf("failed to add credits: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("failed to commit purchase: %w", err)
	}
	return true, balance, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
