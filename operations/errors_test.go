package operations

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Error(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	def := Definition{ID: "op", Version: semver.MustParse("1.2.3")}

	tests := []struct {
		name    string
		err     *Error
		wantMsg string
	}{
		{
			name:    "execution keeps the original message",
			err:     &Error{Kind: KindExecution, Op: def, Err: errBoom},
			wantMsg: "boom",
		},
		{
			name:    "resolution names the operation",
			err:     &Error{Kind: KindResolution, Op: def, Err: errBoom},
			wantMsg: "operation op@1.2.3: resolution failure: boom",
		},
		{
			name:    "lifecycle names the operation",
			err:     &Error{Kind: KindLifecycle, Op: def, Err: errBoom},
			wantMsg: "operation op@1.2.3: lifecycle failure: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.wantMsg, tt.err.Error())
			require.ErrorIs(t, tt.err, errBoom)
		})
	}
}

func Test_Origin(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	inner := &Error{Kind: KindResolution, Op: Definition{ID: "inner"}, Err: errBoom}
	outer := &Error{Kind: KindExecution, Op: Definition{ID: "outer"}, Err: fmt.Errorf("step: %w", inner)}

	got, ok := Origin(outer)
	require.True(t, ok)
	assert.Same(t, inner, got)

	kind, ok := KindOf(outer)
	require.True(t, ok)
	assert.Equal(t, KindResolution, kind)

	def, ok := OperationOf(outer)
	require.True(t, ok)
	assert.Equal(t, "inner", def.ID)

	_, ok = Origin(errBoom)
	assert.False(t, ok)
	_, ok = KindOf(errBoom)
	assert.False(t, ok)
	_, ok = OperationOf(errBoom)
	assert.False(t, ok)
}

func Test_Kind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "resolution", KindResolution.String())
	assert.Equal(t, "lifecycle", KindLifecycle.String())
	assert.Equal(t, "execution", KindExecution.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
