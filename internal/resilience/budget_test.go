package resilience

import (
	"context"
	"errors"
	"math"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_Success(t *testing.T) {
	v, err := Guard(context.Background(), "knee", 0, func(context.Context) (float64, error) {
		return 0.42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0.42, v)
}

func TestGuard_Failures(t *testing.T) {
	tests := []struct {
		name   string
		budget time.Duration
		fn     func(ctx context.Context) (float64, error)
	}{
		{
			name: "panic",
			fn: func(context.Context) (float64, error) {
				var s []float64
				return s[3], nil
			},
		},
		{
			name: "error",
			fn: func(context.Context) (float64, error) {
				return 0, errors.New("singular matrix")
			},
		},
		{
			name: "nan",
			fn: func(context.Context) (float64, error) {
				return math.NaN(), nil
			},
		},
		{
			name:   "budget exceeded",
			budget: 10 * time.Millisecond,
			fn: func(ctx context.Context) (float64, error) {
				<-ctx.Done()
				time.Sleep(5 * time.Millisecond)
				return 1, nil
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Guard(context.Background(), "outlier", tt.budget, tt.fn)
			require.Error(t, err)
			assert.True(t, IsHeuristicFailure(err))
			assert.Contains(t, err.Error(), "outlier")
		})
	}
}

func TestDoVal_RetriesTransient(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	v, err := DoVal(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", syscall.ECONNRESET
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestDoVal_StopsOnPermanent(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), DefaultRetryConfig(), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("access denied")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
