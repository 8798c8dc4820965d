package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/xhad/docfix/internal/types"
	"github.com/xhad/docfix/pkg/payment"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type LedgerConfig struct {
	ConnString string
	TableName  string
}

// Ledger records redeemed payment tokens in Postgres so a token is honored
// once across restarts and replicas.
type Ledger struct {
	config LedgerConfig
	pool   *pgxpool.Pool
}

var _ types.Ledger = (*Ledger)(nil)

func NewWithConfig(ctx context.Context, config LedgerConfig) (*Ledger, error) {
	if config.TableName == "" {
		config.TableName = "redeemed_tokens"
	}
	if !tableName.MatchString(config.TableName) {
		return nil, fmt.Errorf("invalid table name %q", config.TableName)
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	l := &Ledger{
		config: config,
		pool:   pool,
	}

	if err := l.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return l, nil
}

func (l *Ledger) initialize(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			token_id TEXT PRIMARY KEY,
			redeemed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, l.config.TableName)

	if _, err := l.pool.Exec(ctx, createTable); err != nil {
		return errors.Wrap(err, "failed to create table")
	}

	return nil
}

// Redeem marks tokenID as used, failing with payment.ErrAlreadyRedeemed when
// it already was. That error carries the time of the first redemption.
func (l *Ledger) Redeem(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return errors.Wrap(payment.ErrTokenInvalid, "missing token id")
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (token_id) VALUES ($1)
		ON CONFLICT (token_id) DO NOTHING`, l.config.TableName)

	tag, err := l.pool.Exec(ctx, stmt, tokenID)
	if err != nil {
		return errors.Wrap(err, "failed to redeem token")
	}

	if tag.RowsAffected() == 0 {
		at, err := l.redeemedAt(ctx, tokenID)
		if err != nil || at.IsZero() {
			return payment.ErrAlreadyRedeemed
		}
		return errors.Wrapf(payment.ErrAlreadyRedeemed, "redeemed at %s", at.UTC().Format(time.RFC3339))
	}

	return nil
}

// redeemedAt returns when tokenID was redeemed, or the zero time if it was not.
func (l *Ledger) redeemedAt(ctx context.Context, tokenID string) (time.Time, error) {
	query := fmt.Sprintf(`SELECT redeemed_at FROM %s WHERE token_id = $1`, l.config.TableName)

	var at time.Time
	err := l.pool.QueryRow(ctx, query, tokenID).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, "failed to look up token")
	}

	return at, nil
}

func (l *Ledger) Close() {
	l.pool.Close()
}
