package middleware

import (
	"sync/atomic"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/operations-bus/operations"
	"github.com/smartcontractkit/operations-bus/operations/optest"
	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

func Test_Retry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		policy       RetryPolicy
		failures     int32
		unrecover    bool
		wantErr      bool
		wantAttempts int32
	}{
		{
			name:         "succeeds after retries",
			policy:       RetryPolicy{MaxAttempts: 3},
			failures:     2,
			wantAttempts: 3,
		},
		{
			name:         "attempts exhausted",
			policy:       RetryPolicy{MaxAttempts: 2},
			failures:     5,
			wantErr:      true,
			wantAttempts: 2,
		},
		{
			name:         "unrecoverable stops immediately",
			policy:       RetryPolicy{MaxAttempts: 5},
			failures:     5,
			unrecover:    true,
			wantErr:      true,
			wantAttempts: 1,
		},
		{
			name:         "disabled",
			policy:       RetryPolicy{MaxAttempts: 1},
			failures:     1,
			wantErr:      true,
			wantAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var attempts atomic.Int32
			op := operations.NewCommand("flaky", semver.MustParse("1.0.0"), "Flaky",
				func(b operations.Bundle, _ struct{}, _ struct{}) (int, error) {
					if attempts.Add(1) <= tt.failures {
						if tt.unrecover {
							return 0, NewUnrecoverableError(errBoom)
						}

						return 0, errBoom
					}

					return 1, nil
				}, operations.WithMiddleware(Retry(tt.policy, logger.Test(t))))

			got, err := operations.Dispatch(t.Context(), optest.NewBus(t), op.New(struct{}{}))
			if tt.wantErr {
				require.ErrorIs(t, err, errBoom)
				assert.Equal(t, "boom", err.Error())
			} else {
				require.NoError(t, err)
				assert.Equal(t, 1, got)
			}
			assert.Equal(t, tt.wantAttempts, attempts.Load())
		})
	}
}
