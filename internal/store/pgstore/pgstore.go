package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"auctionhouse/internal/auction"
	"auctionhouse/internal/store"
)

// Store persists auction records in Postgres. Commits go through an
// optimistic version check so that concurrent writers (or a second
// service instance) lose cleanly with auction.ErrConflict instead of
// clobbering each other.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store { return &Store{db: db} }

const schema = `
CREATE TABLE IF NOT EXISTS auctions (
    id                  TEXT PRIMARY KEY,
    seller_id           TEXT NOT NULL DEFAULT '',
    item                TEXT NOT NULL DEFAULT '',
    auction_type        TEXT NOT NULL,
    starting_price      NUMERIC NOT NULL,
    current_price       NUMERIC NOT NULL,
    min_price           NUMERIC NOT NULL DEFAULT 0,
    decrease_amount     NUMERIC NOT NULL DEFAULT 0,
    decrease_interval_s BIGINT  NOT NULL DEFAULT 0,
    created_at          TIMESTAMPTZ NOT NULL,
    ends_at             TIMESTAMPTZ NOT NULL,
    highest_bidder      TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL,
    close_reason        TEXT NOT NULL DEFAULT '',
    version             BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS auctions_open_expiry ON auctions (ends_at) WHERE status = 'OPEN';`

// EnsureSchema creates the auctions table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: ensure schema: %v", auction.ErrStoreUnavailable, err)
	}
	return nil
}

const insertQ = `
INSERT INTO auctions (id, seller_id, item, auction_type,
                      starting_price, current_price, min_price,
                      decrease_amount, decrease_interval_s,
                      created_at, ends_at, highest_bidder,
                      status, close_reason, version)
     VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

func (s *Store) Create(ctx context.Context, rec *auction.Record) error {
	_, err := s.db.ExecContext(ctx, insertQ,
		rec.ID, rec.SellerID, rec.Item, string(rec.Type),
		rec.StartingPrice, rec.CurrentPrice, rec.MinPrice,
		rec.DecreaseAmount, rec.DecreaseInterval,
		rec.CreatedAt, rec.EndsAt, rec.HighestBidderID,
		string(rec.Status), string(rec.CloseReason), rec.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return auction.ErrConflict
		}
		return fmt.Errorf("%w: insert: %v", auction.ErrStoreUnavailable, err)
	}
	return nil
}

const selectCols = `id, seller_id, item, auction_type,
       starting_price, current_price, min_price,
       decrease_amount, decrease_interval_s,
       created_at, ends_at, highest_bidder,
       status, close_reason, version`

func (s *Store) Get(ctx context.Context, id string) (*auction.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectCols+` FROM auctions WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auction.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get: %v", auction.ErrStoreUnavailable, err)
	}
	return rec, nil
}

// CompareAndSwap updates only the fields the engine mutates; everything
// else is immutable after creation.
const casQ = `
UPDATE auctions
   SET current_price  = $1,
       highest_bidder = $2,
       status         = $3,
       close_reason   = $4,
       version        = version + 1
 WHERE id = $5 AND version = $6`

func (s *Store) CompareAndSwap(ctx context.Context, rec *auction.Record) error {
	res, err := s.db.ExecContext(ctx, casQ,
		rec.CurrentPrice, rec.HighestBidderID,
		string(rec.Status), string(rec.CloseReason),
		rec.ID, rec.Version,
	)
	if err != nil {
		return fmt.Errorf("%w: cas: %v", auction.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: cas rows: %v", auction.ErrStoreUnavailable, err)
	}
	if n == 0 {
		// Either the row is gone or someone committed first.
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, rec.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%w: cas recheck: %v", auction.ErrStoreUnavailable, err)
		}
		if !exists {
			return auction.ErrNotFound
		}
		return auction.ErrConflict
	}
	rec.Version++
	return nil
}

func (s *Store) List(ctx context.Context, status auction.Status, limit, offset int) ([]auction.Record, error) {
	if limit == 0 {
		limit = 10
	}
	var (
		rows *sql.Rows
		err  error
	)
	base := `SELECT ` + selectCols + ` FROM auctions`
	switch status {
	case auction.Open, auction.Closed:
		rows, err = s.db.QueryContext(ctx,
			base+` WHERE status = $1 ORDER BY ends_at DESC LIMIT $2 OFFSET $3`,
			string(status), limit, offset)
	default:
		rows, err = s.db.QueryContext(ctx,
			base+` ORDER BY ends_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", auction.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	list := make([]auction.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: list scan: %v", auction.ErrStoreUnavailable, err)
		}
		list = append(list, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list rows: %v", auction.ErrStoreUnavailable, err)
	}
	return list, nil
}

func (s *Store) ListOpenExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM auctions WHERE status = 'OPEN' AND ends_at <= $1 ORDER BY ends_at`,
		now)
	if err != nil {
		return nil, fmt.Errorf("%w: list expired: %v", auction.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: list expired scan: %v", auction.ErrStoreUnavailable, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*auction.Record, error) {
	var (
		rec         auction.Record
		typ, st, cr string
	)
	err := row.Scan(&rec.ID, &rec.SellerID, &rec.Item, &typ,
		&rec.StartingPrice, &rec.CurrentPrice, &rec.MinPrice,
		&rec.DecreaseAmount, &rec.DecreaseInterval,
		&rec.CreatedAt, &rec.EndsAt, &rec.HighestBidderID,
		&st, &cr, &rec.Version,
	)
	if err != nil {
		return nil, err
	}
	rec.Type = auction.Type(typ)
	rec.Status = auction.Status(st)
	rec.CloseReason = auction.CloseReason(cr)
	return &rec, nil
}
