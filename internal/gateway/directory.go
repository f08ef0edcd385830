package gateway

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// User is the subset of the user row needed to build connection metadata.
type User struct {
	ID                   string
	Role                 string
	Username             string
	Email                string
	Phone                string
	NotificationsEnabled bool
}

// UserLookup resolves a verified identity to its user row.
type UserLookup interface {
	Lookup(ctx context.Context, id string) (User, error)
}

// Directory looks users up in the relational store.
type Directory struct {
	pool *pgxpool.Pool
}

// NewDirectory creates a Directory over an existing pool.
func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

const lookupUserSQL = `
SELECT role, notifications_enabled, username, email, COALESCE(phone, '')
FROM users
WHERE id = $1`

// Lookup fetches the user row for id.
func (d *Directory) Lookup(ctx context.Context, id string) (User, error) {
	u := User{ID: id}

	row := d.pool.QueryRow(ctx, lookupUserSQL, id)
	if err := row.Scan(&u.Role, &u.NotificationsEnabled, &u.Username, &u.Email, &u.Phone); err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}
