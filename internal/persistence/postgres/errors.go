package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"github.com/clipwave/revcore/internal/domain"
)

// classify maps driver-level failures onto the core's error kinds so that
// entrypoints can decide between retry and abort without knowing pq codes.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", // connection exceptions
			"40", // transaction rollback (serialization, deadlock)
			"53", // insufficient resources
			"57", // operator intervention / query canceled
			"58": // system errors
			return fmt.Errorf("%w: %s: %v", domain.ErrTransientStorage, op, err)
		case "42": // undefined table/column, syntax
			return fmt.Errorf("%w: %s: %v", domain.ErrSchema, op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", domain.ErrTransientStorage, op, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
