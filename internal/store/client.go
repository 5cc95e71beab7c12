package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a photo does not exist or belongs to
// a different owner.
var ErrNotFound = errors.New("record not found")

// ErrInsufficientCredit is returned by Consume when the ledger cannot
// cover the requested amount. Correct call order (Authorize before any
// paid work) should make this unreachable.
var ErrInsufficientCredit = errors.New("insufficient enhancement credit")

type Client struct {
	db *sql.DB
}

func NewClient(connectionString string) (*Client, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}
