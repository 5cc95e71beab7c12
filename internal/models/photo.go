package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Photo statuses. A photo moves pending -> processing -> done, with
// pending/processing -> error once the attempt cap is exhausted.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

// Classification labels produced by the vision model.
const (
	ClassificationExterior          = "exterior"
	ClassificationEmptyInterior     = "empty_interior"
	ClassificationClutteredInterior = "cluttered_interior"
)

// ValidClassification reports whether s is one of the known labels.
func ValidClassification(s string) bool {
	switch s {
	case ClassificationExterior, ClassificationEmptyInterior, ClassificationClutteredInterior:
		return true
	}
	return false
}

type Photo struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	OrganizationID  uuid.NullUUID
	OriginalPath    string
	EnhancedPath    sql.NullString
	Classification  sql.NullString
	Status          string
	ImageHash       string
	FileSize        int64
	OriginalName    string
	AttemptCount    int
	LastAttemptAt   sql.NullTime
	DuplicateHits   int
	PropertyAddress sql.NullString
	RoomName        sql.NullString
	Tags            pq.StringArray
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type CreditLedger struct {
	UserID    uuid.UUID
	Allowance int
	Consumed  int
	Unlimited bool
	UpdatedAt time.Time
}

// Remaining is the number of enhancements the user can still afford.
// Meaningless when Unlimited is set.
func (l *CreditLedger) Remaining() int {
	return l.Allowance - l.Consumed
}

// CreditDecision is the outcome of an authorization check before paid work.
type CreditDecision struct {
	Allowed    bool
	Unlimited  bool
	Allowance  int
	Consumed   int
	Remaining  int
	Requested  int
	Affordable int
}
