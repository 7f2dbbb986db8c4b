package operations

import (
	"context"
	"errors"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Chain(t *testing.T) {
	t.Parallel()

	inv := Invocation{Def: Definition{ID: "op", Version: semver.MustParse("1.0.0")}, DispatchID: "d1"}
	var trace []string
	mw := func(name string) Middleware {
		return MiddlewareFunc(name, func(ctx context.Context, got Invocation, next Next) (any, error) {
			assert.Equal(t, inv, got)
			trace = append(trace, name+".before")
			res, err := next(ctx)
			trace = append(trace, name+".after")

			return res, err
		})
	}

	tests := []struct {
		name      string
		mws       []Middleware
		wantTrace []string
	}{
		{
			name:      "no middleware",
			wantTrace: []string{"E"},
		},
		{
			name:      "one middleware",
			mws:       []Middleware{mw("A")},
			wantTrace: []string{"A.before", "E", "A.after"},
		},
		{
			name:      "first is outermost",
			mws:       []Middleware{mw("A"), mw("B"), mw("C")},
			wantTrace: []string{"A.before", "B.before", "C.before", "E", "C.after", "B.after", "A.after"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trace = nil
			next := Chain(inv, tt.mws, func(ctx context.Context) (any, error) {
				trace = append(trace, "E")
				return 42, nil
			})

			res, err := next(t.Context())
			require.NoError(t, err)
			assert.Equal(t, 42, res)
			assert.Equal(t, tt.wantTrace, trace)
		})
	}
}

func Test_Chain_TranslatesFailure(t *testing.T) {
	t.Parallel()

	errInner := errors.New("inner")
	errOuter := errors.New("outer")
	translate := MiddlewareFunc("translate", func(ctx context.Context, inv Invocation, next Next) (any, error) {
		if _, err := next(ctx); errors.Is(err, errInner) {
			return nil, errOuter
		}

		return nil, nil
	})

	next := Chain(Invocation{}, []Middleware{translate}, func(context.Context) (any, error) {
		return nil, errInner
	})
	_, err := next(t.Context())
	require.ErrorIs(t, err, errOuter)
	assert.Equal(t, "translate", translate.Name())
}
