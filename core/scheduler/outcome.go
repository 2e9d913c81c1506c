package scheduler

import (
	"time"

	"github.com/google/uuid"
)

// Result is the terminal classification of a single reconciliation cycle.
type Result string

const (
	// ResultRenewed means new certificate material was stored and the proxy
	// now serves it.
	ResultRenewed Result = "renewed"

	// ResultSkippedNotDue means the on-disk certificate required no action.
	ResultSkippedNotDue Result = "skipped-not-due"

	// ResultFellBackSelfSigned means CA issuance failed with no valid
	// certificate on disk, so a self-signed certificate was installed to keep
	// the proxy serving HTTPS.
	ResultFellBackSelfSigned Result = "fell-back-to-self-signed"

	// ResultFailed means the cycle could not improve on the current state;
	// whatever was on disk before the cycle is still in place.
	ResultFailed Result = "failed"
)

// Outcome is the journal record of one reconciliation cycle. Outcomes are
// append-only observability data; the scheduler never reads them back to make
// decisions.
type Outcome struct {
	ID          uuid.UUID `json:"id"`
	Domain      string    `json:"domain"`
	AttemptedAt time.Time `json:"attempted_at"`
	Result      Result    `json:"result"`
	Detail      string    `json:"detail,omitempty"`
}
