package services

import (
	"context"
	"errors"
	"fmt"
)

// readPlan describes a lookup against the secondary store with a fallback to
// the primary. A nil secondary means the secondary store is disabled.
//
// secondary returns decisive=true when its answer ends the lookup. primary
// returns found=false when the primary has no answer either. backfill runs
// after a primary answer that the secondary did not have.
type readPlan[T any] struct {
	secondary func(ctx context.Context) (value T, decisive bool, err error)
	primary   func(ctx context.Context) (value T, found bool, err error)
	backfill  func(value T)
	// onSecondaryError is called when the secondary fails; the lookup then
	// continues on the primary.
	onSecondaryError func(err error)
}

// readThrough runs plan and reports whether a value was found.
func readThrough[T any](ctx context.Context, plan readPlan[T]) (T, bool, error) {
	var zero T

	if plan.secondary != nil {
		value, decisive, err := plan.secondary(ctx)
		switch {
		case err != nil:
			if plan.onSecondaryError != nil {
				plan.onSecondaryError(err)
			}
		case decisive:
			return value, true, nil
		}
	}

	value, found, err := plan.primary(ctx)
	if err != nil {
		return zero, false, err
	}
	if !found {
		return zero, false, nil
	}
	if plan.secondary != nil && plan.backfill != nil {
		plan.backfill(value)
	}
	return value, true, nil
}

// writePlan describes a write to both stores. A nil secondary means the
// secondary store is disabled.
type writePlan[T any] struct {
	secondary func(ctx context.Context) (T, error)
	primary   func(ctx context.Context) (T, error)
	// fallback builds the result from the secondary's result when only the
	// secondary accepted the write.
	fallback func(secondaryResult T) T
	// fatal marks primary errors that must be returned even when the
	// secondary succeeded.
	fatal func(err error) bool
	// undoSecondary, when set, reverts the secondary write after a fatal
	// primary error.
	undoSecondary func(ctx context.Context, secondaryResult T)
}

// DualWriteError carries the per-store failures of a write.
type DualWriteError struct {
	Primary   error
	Secondary error
}

func (e *DualWriteError) Error() string {
	if e.Secondary == nil {
		return fmt.Sprintf("primary store: %v", e.Primary)
	}
	return fmt.Sprintf("primary store: %v; secondary store: %v", e.Primary, e.Secondary)
}

func (e *DualWriteError) Unwrap() []error {
	return []error{e.Primary, e.Secondary}
}

// writeOutcome reports which stores accepted the write.
type writeOutcome int

const (
	wroteBoth writeOutcome = iota
	wrotePrimaryOnly
	wroteSecondaryOnly
	wroteNone
)

// dualWrite writes the secondary first (failures are not fatal), then the
// primary. If the primary fails but the secondary succeeded the fallback
// result is returned with wroteSecondaryOnly, unless the primary error is
// fatal, in which case the secondary write is undone.
func dualWrite[T any](ctx context.Context, plan writePlan[T]) (T, writeOutcome, error) {
	var zero T

	var (
		secondaryResult T
		secondaryErr    error
	)
	if plan.secondary != nil {
		secondaryResult, secondaryErr = plan.secondary(ctx)
	}

	result, primaryErr := plan.primary(ctx)
	if primaryErr == nil {
		if plan.secondary == nil || secondaryErr != nil {
			return result, wrotePrimaryOnly, nil
		}
		return result, wroteBoth, nil
	}

	secondaryOK := plan.secondary != nil && secondaryErr == nil
	fatal := plan.fatal != nil && plan.fatal(primaryErr)
	if secondaryOK && !fatal {
		return plan.fallback(secondaryResult), wroteSecondaryOnly, nil
	}
	if secondaryOK && plan.undoSecondary != nil {
		plan.undoSecondary(ctx, secondaryResult)
	}
	return zero, wroteNone, &DualWriteError{Primary: primaryErr, Secondary: secondaryErr}
}

// primaryError extracts the primary store's part of a dual-write failure.
func primaryError(err error) error {
	var dw *DualWriteError
	if errors.As(err, &dw) {
		return dw.Primary
	}
	return err
}

func primaryErrorIs(err, target error) bool {
	return errors.Is(primaryError(err), target)
}
