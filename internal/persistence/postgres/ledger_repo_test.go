package postgres

import (
	"strings"
	"testing"
)

func TestMarkerRecipient(t *testing.T) {
	if got := markerRecipient(0); got != nil {
		t.Errorf("zero recipient should bind NULL, got %v", got)
	}
	if got := markerRecipient(42); got != int64(42) {
		t.Errorf("recipient binding = %v, want 42", got)
	}
}

func TestSchema_OutflowRecipientNullable(t *testing.T) {
	if strings.Contains(Schema, "recipient     BIGINT NOT NULL") {
		t.Error("transactions.recipient must allow NULL for platform-side markers")
	}
	if !strings.Contains(Schema, "CHECK (direction = 'outflow' OR recipient IS NOT NULL)") {
		t.Error("inflow rows must still require a recipient")
	}
}
