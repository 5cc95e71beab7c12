package store

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/majicagent/photo-pipeline/internal/models"
)

// Ledger returns the credit ledger for a user, creating the default row
// (10 free enhancements) on first touch.
func (c *Client) Ledger(userID uuid.UUID) (*models.CreditLedger, error) {
	_, err := c.db.Exec(`
		INSERT INTO photo_credits (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure credit ledger: %w", err)
	}

	var ledger models.CreditLedger
	err = c.db.QueryRow(`
		SELECT user_id, allowance, consumed, unlimited, updated_at
		FROM photo_credits
		WHERE user_id = $1
	`, userID).Scan(&ledger.UserID, &ledger.Allowance, &ledger.Consumed, &ledger.Unlimited, &ledger.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get credit ledger: %w", err)
	}
	return &ledger, nil
}

// Authorize reports whether the user can afford count more enhancements.
// It never fails the request on its own; callers use the decision to
// reject a batch before any paid work starts.
func (c *Client) Authorize(userID uuid.UUID, count int) (*models.CreditDecision, error) {
	ledger, err := c.Ledger(userID)
	if err != nil {
		return nil, err
	}

	remaining := ledger.Remaining()
	if remaining < 0 {
		remaining = 0
	}

	decision := &models.CreditDecision{
		Allowed:    ledger.Unlimited || remaining >= count,
		Unlimited:  ledger.Unlimited,
		Allowance:  ledger.Allowance,
		Consumed:   ledger.Consumed,
		Remaining:  remaining,
		Requested:  count,
		Affordable: remaining,
	}
	if ledger.Unlimited {
		decision.Affordable = count
	} else if decision.Affordable > count {
		decision.Affordable = count
	}
	return decision, nil
}

// Consume bills count successful enhancements against the ledger. The
// conditional update is the atomicity boundary: two concurrent successes
// for the same owner serialize on the row and neither can push consumed
// past the allowance. No-op for unlimited users.
func (c *Client) Consume(userID uuid.UUID, count int) error {
	result, err := c.db.Exec(`
		UPDATE photo_credits
		SET consumed = consumed + $1, updated_at = NOW()
		WHERE user_id = $2 AND NOT unlimited AND consumed + $1 <= allowance
	`, count, userID)
	if err != nil {
		return fmt.Errorf("failed to consume credit: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to consume credit: %w", err)
	}
	if affected == 1 {
		return nil
	}

	ledger, err := c.Ledger(userID)
	if err != nil {
		return err
	}
	if ledger.Unlimited {
		return nil
	}
	return fmt.Errorf("%w: %d/%d used, requested %d", ErrInsufficientCredit, ledger.Consumed, ledger.Allowance, count)
}
