package pgstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctionhouse/internal/auction"
)

var t0 = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

var recordCols = []string{
	"id", "seller_id", "item", "auction_type",
	"starting_price", "current_price", "min_price",
	"decrease_amount", "decrease_interval_s",
	"created_at", "ends_at", "highest_bidder",
	"status", "close_reason", "version",
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestGetScansRecord(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM auctions WHERE id = \$1`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow(
			"d1", "seller-1", "lamp", "DUTCH",
			"100", "100", "40",
			"10", int64(60),
			t0, t0.Add(time.Hour), "",
			"OPEN", "", int64(2),
		))

	rec, err := s.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, auction.Dutch, rec.Type)
	assert.True(t, rec.StartingPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, rec.MinPrice.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, int64(60), rec.DecreaseInterval)
	assert.Equal(t, int64(2), rec.Version)
	require.NoError(t, rec.Validate())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM auctions WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(recordCols))

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, auction.ErrNotFound)
}

func casRecord(t *testing.T) *auction.Record {
	t.Helper()
	rec, err := auction.NewRecord(auction.NewRecordParams{
		ID:            "a1",
		Type:          auction.Forward,
		StartingPrice: decimal.NewFromInt(100),
		EndsAt:        t0.Add(time.Hour),
	}, t0)
	require.NoError(t, err)
	rec.Version = 3
	return rec
}

func TestCompareAndSwapBumpsVersion(t *testing.T) {
	s, mock := newMock(t)
	rec := casRecord(t)
	rec.HighestBidderID = "alice"
	rec.CurrentPrice = decimal.NewFromInt(150)

	mock.ExpectExec(`UPDATE auctions`).
		WithArgs("150", "alice", "OPEN", "", "a1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.CompareAndSwap(context.Background(), rec))
	assert.Equal(t, int64(4), rec.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSwapConflict(t *testing.T) {
	s, mock := newMock(t)
	rec := casRecord(t)

	mock.ExpectExec(`UPDATE auctions`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := s.CompareAndSwap(context.Background(), rec)
	assert.ErrorIs(t, err, auction.ErrConflict)
	assert.Equal(t, int64(3), rec.Version, "version untouched on a lost race")
}

func TestCompareAndSwapVanishedRow(t *testing.T) {
	s, mock := newMock(t)
	rec := casRecord(t)

	mock.ExpectExec(`UPDATE auctions`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := s.CompareAndSwap(context.Background(), rec)
	assert.ErrorIs(t, err, auction.ErrNotFound)
}

func TestCreateDuplicate(t *testing.T) {
	s, mock := newMock(t)
	rec := casRecord(t)

	mock.ExpectExec(`INSERT INTO auctions`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.Create(context.Background(), rec)
	assert.ErrorIs(t, err, auction.ErrConflict)
}

func TestListOpenExpired(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(`SELECT id FROM auctions WHERE status = 'OPEN' AND ends_at <= \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1").AddRow("a2"))

	ids, err := s.ListOpenExpired(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)
}

func TestListWithStatusFilter(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM auctions WHERE status = \$1`).
		WithArgs("CLOSED", 10, 0).
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow(
			"a1", "seller-1", "clock", "FORWARD",
			"100", "150", "0",
			"0", int64(0),
			t0, t0.Add(time.Hour), "alice",
			"CLOSED", "EXPIRED", int64(5),
		))

	list, err := s.List(context.Background(), auction.Closed, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, auction.CloseExpired, list[0].CloseReason)
	assert.Equal(t, "alice", list[0].HighestBidderID)
}
