package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/palmistry/internal/models"
)

func setupStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return New(sqlx.NewDb(mockDB, "sqlmock")), mock
}

const (
	deductQuery   = `UPDATE profiles SET analysis_credits = analysis_credits - 1`
	insertQuery   = `INSERT INTO analyses`
	paymentInsert = `INSERT INTO payments`
	creditUpsert  = `INSERT INTO profiles (user_id, analysis_credits)`
)

func TestCredits(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT analysis_credits FROM profiles WHERE user_id = $1`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"analysis_credits"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT analysis_credits FROM profiles WHERE user_id = $1`)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	credits, err := s.Credits(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, credits)

	_, err = s.Credits(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAnalysis(t *testing.T) {
	doc := models.JSONB(`{"overallScore":80}`)
	in := NewAnalysis{UserID: "u1", ImageURL: "https://x/palm-images/u1/1.jpg", AdditionalNotes: "left", Result: doc, Language: "pl"}

	t.Run("deducts and inserts in one transaction", func(t *testing.T) {
		s, mock := setupStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(deductQuery)).WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"analysis_credits"}).AddRow(2))
		mock.ExpectQuery(regexp.QuoteMeta(insertQuery)).
			WithArgs("u1", in.ImageURL, "left", sqlmock.AnyArg(), "pl").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a-1"))
		mock.ExpectCommit()

		id, remaining, err := s.SaveAnalysis(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "a-1", id)
		assert.Equal(t, 2, remaining)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no credit left writes nothing", func(t *testing.T) {
		s, mock := setupStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(deductQuery)).WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"analysis_credits"}))
		mock.ExpectRollback()

		_, _, err := s.SaveAnalysis(context.Background(), in)
		assert.ErrorIs(t, err, ErrInsufficientCredits)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back the deduction", func(t *testing.T) {
		s, mock := setupStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(deductQuery)).WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"analysis_credits"}).AddRow(0))
		mock.ExpectQuery(regexp.QuoteMeta(insertQuery)).WillReturnError(assert.AnError)
		mock.ExpectRollback()

		_, _, err := s.SaveAnalysis(context.Background(), in)
		assert.ErrorIs(t, err, assert.AnError)
		assert.NotErrorIs(t, err, ErrInsufficientCredits)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListAndGetAnalyses(t *testing.T) {
	s, mock := setupStore(t)
	cols := []string{"id", "user_id", "image_url", "additional_notes", "analysis_result", "language", "created_at"}
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM analyses WHERE user_id = $1 ORDER BY created_at DESC`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a-2", "u1", "url2", "", []byte(`{"overview":"new"}`), "en", now).
			AddRow("a-1", "u1", "url1", "n", []byte(`{"overview":"old"}`), "pl", now.Add(-time.Hour)))

	list, err := s.ListAnalyses(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a-2", list[0].ID)
	assert.JSONEq(t, `{"overview":"old"}`, string(list[1].Result))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM analyses WHERE id = $1 AND user_id = $2`)).
		WithArgs("a-1", "u2").
		WillReturnError(sql.ErrNoRows)

	_, err = s.GetAnalysis(context.Background(), "u2", "a-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPurchase(t *testing.T) {
	intent := "pi_1"
	amount := int64(1999)
	newPayment := func() *models.Payment {
		return &models.Payment{UserID: "u1", StripeSessionID: "cs_1", StripePaymentIntentID: &intent, AmountCents: &amount, CreditsPurchased: 5}
	}
	paymentRow := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "created_at"}).AddRow("p-1", time.Now())
	}

	t.Run("first delivery credits the user", func(t *testing.T) {
		s, mock := setupStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(paymentInsert)).
			WithArgs("u1", "cs_1", &intent, &amount, 5, models.PaymentStatusCompleted).
			WillReturnRows(paymentRow())
		mock.ExpectQuery(regexp.QuoteMeta(creditUpsert)).WithArgs("u1", 5).
			WillReturnRows(sqlmock.NewRows([]string{"analysis_credits"}).AddRow(7))
		mock.ExpectCommit()

		p := newPayment()
		applied, balance, err := s.RecordPurchase(context.Background(), p)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, 7, balance)
		assert.Equal(t, "p-1", p.ID)
		assert.Equal(t, models.PaymentStatusCompleted, p.Status)
		assert.False(t, p.CreatedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redelivery does not credit again", func(t *testing.T) {
		s, mock := setupStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(paymentInsert)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))
		mock.ExpectCommit()

		p := newPayment()
		applied, _, err := s.RecordPurchase(context.Background(), p)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Empty(t, p.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("credit failure rolls back the payment", func(t *testing.T) {
		s, mock := setupStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(paymentInsert)).WillReturnRows(paymentRow())
		mock.ExpectQuery(regexp.QuoteMeta(creditUpsert)).WillReturnError(assert.AnError)
		mock.ExpectRollback()

		_, _, err := s.RecordPurchase(context.Background(), newPayment())
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEnsureProfile(t *testing.T) {
	s, mock := setupStore(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO profiles (user_id) VALUES ($1)`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "analysis_credits", "created_at"}).AddRow("u1", 0, now))

	p, err := s.EnsureProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, 0, p.AnalysisCredits)
	assert.NoError(t, mock.ExpectationsWereMet())
}
