package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadThrough(t *testing.T) {
	errSecondary := errors.New("secondary down")
	errPrimary := errors.New("primary down")

	tests := []struct {
		name             string
		secondaryEnabled bool
		secondaryValue   string
		secondaryDecides bool
		secondaryErr     error
		primaryValue     string
		primaryFound     bool
		primaryErr       error
		wantValue        string
		wantFound        bool
		wantErr          error
		wantPrimaryCalls int
		wantBackfills    int
		wantSecondaryErr int
	}{
		{
			name: "secondary decisive", secondaryEnabled: true,
			secondaryValue: "s", secondaryDecides: true,
			wantValue: "s", wantFound: true,
		},
		{
			name: "secondary miss, primary hit", secondaryEnabled: true,
			primaryValue: "p", primaryFound: true,
			wantValue: "p", wantFound: true, wantPrimaryCalls: 1, wantBackfills: 1,
		},
		{
			name: "secondary error, primary hit", secondaryEnabled: true, secondaryErr: errSecondary,
			primaryValue: "p", primaryFound: true,
			wantValue: "p", wantFound: true, wantPrimaryCalls: 1, wantBackfills: 1, wantSecondaryErr: 1,
		},
		{
			name: "both miss", secondaryEnabled: true,
			wantPrimaryCalls: 1,
		},
		{
			name: "secondary disabled, primary hit",
			primaryValue: "p", primaryFound: true,
			wantValue: "p", wantFound: true, wantPrimaryCalls: 1,
		},
		{
			name: "primary error", secondaryEnabled: true, primaryErr: errPrimary,
			wantErr: errPrimary, wantPrimaryCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var primaryCalls, backfills, secondaryErrs int
			plan := readPlan[string]{
				primary: func(context.Context) (string, bool, error) {
					primaryCalls++
					return tt.primaryValue, tt.primaryFound, tt.primaryErr
				},
				backfill:         func(string) { backfills++ },
				onSecondaryError: func(error) { secondaryErrs++ },
			}
			if tt.secondaryEnabled {
				plan.secondary = func(context.Context) (string, bool, error) {
					return tt.secondaryValue, tt.secondaryDecides, tt.secondaryErr
				}
			}

			value, found, err := readThrough(context.Background(), plan)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantValue, value)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantPrimaryCalls, primaryCalls)
			assert.Equal(t, tt.wantBackfills, backfills)
			assert.Equal(t, tt.wantSecondaryErr, secondaryErrs)
		})
	}
}

func TestDualWrite(t *testing.T) {
	errSecondary := errors.New("secondary down")
	errPrimary := errors.New("primary down")
	errFatal := errors.New("unique violation")

	tests := []struct {
		name             string
		secondaryEnabled bool
		secondaryErr     error
		primaryErr       error
		wantValue        string
		wantOutcome      writeOutcome
		wantErr          bool
		wantUndo         bool
	}{
		{name: "both succeed", secondaryEnabled: true, wantValue: "p", wantOutcome: wroteBoth},
		{name: "secondary fails", secondaryEnabled: true, secondaryErr: errSecondary, wantValue: "p", wantOutcome: wrotePrimaryOnly},
		{name: "secondary disabled", wantValue: "p", wantOutcome: wrotePrimaryOnly},
		{name: "primary fails", secondaryEnabled: true, primaryErr: errPrimary, wantValue: "fallback(s)", wantOutcome: wroteSecondaryOnly},
		{name: "both fail", secondaryEnabled: true, secondaryErr: errSecondary, primaryErr: errPrimary, wantOutcome: wroteNone, wantErr: true},
		{name: "primary fatal", secondaryEnabled: true, primaryErr: errFatal, wantOutcome: wroteNone, wantErr: true, wantUndo: true},
		{name: "primary fatal, secondary fails", secondaryEnabled: true, secondaryErr: errSecondary, primaryErr: errFatal, wantOutcome: wroteNone, wantErr: true},
		{name: "primary fails, secondary disabled", primaryErr: errPrimary, wantOutcome: wroteNone, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var order []string
			plan := writePlan[string]{
				primary: func(context.Context) (string, error) {
					order = append(order, "primary")
					if tt.primaryErr != nil {
						return "", tt.primaryErr
					}
					return "p", nil
				},
				fallback: func(s string) string { return "fallback(" + s + ")" },
				fatal:    func(err error) bool { return errors.Is(err, errFatal) },
				undoSecondary: func(_ context.Context, s string) {
					order = append(order, "undo("+s+")")
				},
			}
			if tt.secondaryEnabled {
				plan.secondary = func(context.Context) (string, error) {
					order = append(order, "secondary")
					if tt.secondaryErr != nil {
						return "", tt.secondaryErr
					}
					return "s", nil
				}
			}

			value, outcome, err := dualWrite(context.Background(), plan)
			assert.Equal(t, tt.wantOutcome, outcome)
			assert.Equal(t, tt.wantValue, value)
			if tt.secondaryEnabled {
				want := []string{"secondary", "primary"}
				if tt.wantUndo {
					want = append(want, "undo(s)")
				}
				assert.Equal(t, want, order)
			}
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, primaryErrorIs(err, tt.primaryErr))
			if tt.secondaryErr != nil {
				assert.ErrorIs(t, err, tt.secondaryErr)
			}
		})
	}
}
