package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/nse-market-service/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &DB{conn: conn}, mock
}

func requirePersistenceKind(t *testing.T, err error, kind PersistenceKind) {
	t.Helper()
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr), "expected *PersistenceError, got %v", err)
	assert.Equal(t, kind, perr.Kind)
}

func TestUpsertBatch_Transaction(t *testing.T) {
	batch := []models.PriceObservation{
		observation("XYZ", "2024-03-08", 10, 9),
		observation("ABC", "2024-03-08", 100, 80),
	}

	t.Run("rolls back the whole batch when a row fails", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO stocks").WithArgs("ABC", "", nil, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO stocks").WithArgs("XYZ", "", nil, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
		prep := mock.ExpectPrepare("INSERT INTO stock_prices")
		prep.ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
		prep.ExpectQuery().WillReturnError(&pq.Error{Code: "23514", Message: "check constraint violated"})
		mock.ExpectRollback()

		result, err := db.UpsertBatch(context.Background(), batch)
		require.Error(t, err)
		assert.Nil(t, result)
		requirePersistenceKind(t, err, KindConstraintViolation)
		assert.Contains(t, err.Error(), "XYZ")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commits and counts inserts and updates", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO stocks").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO stocks").WillReturnResult(sqlmock.NewResult(0, 0))
		prep := mock.ExpectPrepare("INSERT INTO stock_prices")
		prep.ExpectQuery().
			WithArgs("ABC", sqlmock.AnyArg(), "100", "80", "20", "25", nil, nil, nil, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
		prep.ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))
		mock.ExpectCommit()

		result, err := db.UpsertBatch(context.Background(), batch)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Inserted)
		assert.Equal(t, 1, result.Updated)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unchanged rows count as updated", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO stocks").WillReturnResult(sqlmock.NewResult(0, 0))
		prep := mock.ExpectPrepare("INSERT INTO stock_prices")
		prep.ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"inserted"}))
		mock.ExpectCommit()

		result, err := db.UpsertBatch(context.Background(), batch[:1])
		require.NoError(t, err)
		assert.Equal(t, 0, result.Inserted)
		assert.Equal(t, 1, result.Updated)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure is a connection failure", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO stocks").WillReturnResult(sqlmock.NewResult(0, 1))
		prep := mock.ExpectPrepare("INSERT INTO stock_prices")
		prep.ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
		mock.ExpectCommit().WillReturnError(errors.New("connection reset by peer"))

		_, err := db.UpsertBatch(context.Background(), batch[:1])
		requirePersistenceKind(t, err, KindConnectionFailure)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure is a connection failure", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin().WillReturnError(errors.New("dial tcp: connection refused"))

		_, err := db.UpsertBatch(context.Background(), batch)
		requirePersistenceKind(t, err, KindConnectionFailure)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("foreign key failure on stocks aborts", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO stocks").WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		_, err := db.UpsertBatch(context.Background(), batch[:1])
		requirePersistenceKind(t, err, KindConstraintViolation)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid rows never open a transaction", func(t *testing.T) {
		db, mock := newMockDB(t)

		result, err := db.UpsertBatch(context.Background(), []models.PriceObservation{{Symbol: "ABC"}})
		require.NoError(t, err)
		require.Len(t, result.Failed, 1)
		assert.Equal(t, "missing date", result.Failed[0].Reason)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetLatest_NotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("FROM stock_prices p").WithArgs("NOPE").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := db.GetLatest(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPriorObservations_NoKeys(t *testing.T) {
	db, mock := newMockDB(t)

	priors, err := db.GetPriorObservations(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, priors)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPersistenceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want PersistenceKind
	}{
		{name: "unique violation", err: &pq.Error{Code: "23505"}, want: KindConstraintViolation},
		{name: "foreign key violation", err: &pq.Error{Code: "23503"}, want: KindConstraintViolation},
		{name: "wrapped check violation", err: errors.Join(errors.New("exec"), &pq.Error{Code: "23514"}), want: KindConstraintViolation},
		{name: "admin shutdown", err: &pq.Error{Code: "57P01"}, want: KindConnectionFailure},
		{name: "plain error", err: errors.New("broken pipe"), want: KindConnectionFailure},
		{name: "context deadline", err: context.DeadlineExceeded, want: KindConnectionFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newPersistenceError("do something", tt.err)
			requirePersistenceKind(t, err, tt.want)
			assert.True(t, errors.Is(err, tt.err))
			assert.Contains(t, err.Error(), "failed to do something")
		})
	}
}

func mover(symbol string, pct string) *models.PriceObservation {
	obs := &models.PriceObservation{Symbol: symbol}
	if pct != "" {
		obs.ChangePercent = decimal.NewNullDecimal(decimal.RequireFromString(pct))
	}
	return obs
}

func TestRankMovers(t *testing.T) {
	t.Run("orders gainers and losers and excludes nulls", func(t *testing.T) {
		latest := []*models.PriceObservation{
			mover("A", "5"), mover("B", "10"), mover("C", ""), mover("D", "-3"),
		}

		movers := rankMovers(latest, 2)
		assert.Equal(t, []string{"B", "A"}, symbols(movers.Gainers))
		assert.Equal(t, []string{"D"}, symbols(movers.Losers))
	})

	t.Run("breaks ties by symbol", func(t *testing.T) {
		latest := []*models.PriceObservation{
			mover("ZZ", "2.5"), mover("AA", "2.50"), mover("MM", "-1"), mover("BB", "-1.0"),
		}

		movers := rankMovers(latest, 5)
		assert.Equal(t, []string{"AA", "ZZ"}, symbols(movers.Gainers))
		assert.Equal(t, []string{"BB", "MM"}, symbols(movers.Losers))
	})

	t.Run("excludes unchanged stocks", func(t *testing.T) {
		movers := rankMovers([]*models.PriceObservation{mover("FLAT", "0")}, 5)
		assert.Empty(t, movers.Gainers)
		assert.Empty(t, movers.Losers)
	})

	t.Run("limits each list", func(t *testing.T) {
		latest := []*models.PriceObservation{
			mover("A", "1"), mover("B", "2"), mover("C", "3"), mover("D", "-1"), mover("E", "-2"),
		}

		movers := rankMovers(latest, 1)
		assert.Equal(t, []string{"C"}, symbols(movers.Gainers))
		assert.Equal(t, []string{"E"}, symbols(movers.Losers))
	})

	t.Run("empty snapshot yields empty lists", func(t *testing.T) {
		movers := rankMovers(nil, 5)
		assert.NotNil(t, movers.Gainers)
		assert.NotNil(t, movers.Losers)
	})
}

func TestSummarize(t *testing.T) {
	vol := int64(100)
	up := &models.PriceObservation{Symbol: "UP", Date: date("2024-03-08"), ChangeAmount: decimal.NewNullDecimal(decimal.NewFromInt(1)), Volume: &vol}
	stale := &models.PriceObservation{Symbol: "OLD", Date: date("2024-02-01"), ChangeAmount: decimal.NewNullDecimal(decimal.NewFromInt(-1))}
	unknown := &models.PriceObservation{Symbol: "NEW", Date: date("2024-03-08")}

	summary := summarize([]*models.PriceObservation{up, stale, unknown})
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Advancers)
	assert.Equal(t, 1, summary.Decliners)
	assert.Equal(t, 1, summary.NoChange)
	assert.Equal(t, int64(100), summary.TotalVolume)
	require.NotNil(t, summary.TradingDate)
	assert.True(t, date("2024-03-08").Equal(*summary.TradingDate))
}

func TestStockReferences(t *testing.T) {
	first := observation("SCOM", "2024-03-07", 14, 0)
	first.Stock = &models.StockReference{Symbol: "SCOM", Name: "Safaricom", Sector: strPtr("Telecom")}
	second := observation("SCOM", "2024-03-08", 14, 0)
	second.Stock = &models.StockReference{Symbol: "SCOM", Name: ""}

	refs := stockReferences([]models.PriceObservation{second, observation("ABSA", "2024-03-08", 12, 0), first})
	require.Len(t, refs, 2)
	assert.Equal(t, "ABSA", refs[0].Symbol)
	assert.Equal(t, "SCOM", refs[1].Symbol)
	assert.Equal(t, "Safaricom", refs[1].Name)
	assert.Equal(t, "Telecom", *refs[1].Sector)
}
