package domain

import "errors"

// Error kinds surfaced by the core. Callers classify with errors.Is; storage
// implementations wrap driver errors into one of these so that retry and
// abort decisions stay uniform across entrypoints.
var (
	// ErrTransientStorage marks storage failures worth retrying (connection
	// drops, serialization conflicts, resource exhaustion).
	ErrTransientStorage = errors.New("transient storage error")

	// ErrSchema marks fatal storage-shape mismatches (missing table or
	// column). Runs abort without writes.
	ErrSchema = errors.New("schema error")

	// ErrValidation marks bad caller input (negative pool, inverted window).
	// Rejected before any side effect.
	ErrValidation = errors.New("validation error")

	// ErrMarginGuardrail means the margin target cannot be met; the window is
	// recorded with a zero creator pool and no ledger rows.
	ErrMarginGuardrail = errors.New("margin guardrail violated")

	// ErrPartialCommit means ledger rows were written but the revenue window
	// record failed and compensation also failed. Operator repair required.
	ErrPartialCommit = errors.New("partial commit")
)
