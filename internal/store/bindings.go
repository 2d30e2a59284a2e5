package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Bindings links a conversational user to a billing customer id.
type Bindings interface {
	CustomerID(ctx context.Context, userID string) (string, bool, error)
	Bind(ctx context.Context, userID, customerID string) error
}

// KeyedBindings keeps customer bindings in any KeyedStore.
type KeyedBindings struct {
	store KeyedStore[string]
}

// NewKeyedBindings wraps a keyed store as a Bindings implementation.
func NewKeyedBindings(store KeyedStore[string]) *KeyedBindings {
	if store == nil {
		panic("store: keyed store required")
	}
	return &KeyedBindings{store: store}
}

func (b *KeyedBindings) CustomerID(ctx context.Context, userID string) (string, bool, error) {
	id, ok, err := b.store.Get(ctx, userID)
	if err != nil || !ok || id == "" {
		return "", false, err
	}
	return id, true, nil
}

func (b *KeyedBindings) Bind(ctx context.Context, userID, customerID string) error {
	return b.store.Set(ctx, userID, customerID)
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresBindings persists customer bindings in the customer_bindings table.
type PostgresBindings struct {
	db rowQuerier
}

func NewPostgresBindings(pool *pgxpool.Pool) *PostgresBindings {
	if pool == nil {
		panic("store: pgx pool required")
	}
	return &PostgresBindings{db: pool}
}

func newPostgresBindingsWithQuerier(db rowQuerier) *PostgresBindings {
	if db == nil {
		panic("store: querier required")
	}
	return &PostgresBindings{db: db}
}

// CustomerID returns the bound billing customer for userID.
func (b *PostgresBindings) CustomerID(ctx context.Context, userID string) (string, bool, error) {
	query := `SELECT customer_id FROM customer_bindings WHERE user_id = $1`
	var customerID string
	if err := b.db.QueryRow(ctx, query, userID).Scan(&customerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: get customer binding: %w", err)
	}
	return customerID, true, nil
}

// Bind records or replaces the billing customer for userID.
func (b *PostgresBindings) Bind(ctx context.Context, userID, customerID string) error {
	query := `
		INSERT INTO customer_bindings (user_id, customer_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET customer_id = EXCLUDED.customer_id, updated_at = now()
	`
	if _, err := b.db.Exec(ctx, query, userID, customerID); err != nil {
		return fmt.Errorf("store: bind customer: %w", err)
	}
	return nil
}
