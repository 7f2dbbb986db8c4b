package dependency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditor interface{ Audit(string) }

type nopAuditor struct{}

func (nopAuditor) Audit(string) {}

type baseDeps struct {
	Name string `dep:"name"`
}

type opDeps struct {
	baseDeps
	Store   store   `dep:"store"`
	Auditor auditor `dep:"auditor,optional"`
	Ignored string  `dep:"-"`
	Plain   int
}

func Test_RequirementsOf(t *testing.T) {
	t.Parallel()

	needs := RequirementsOf[opDeps]()
	assert.Equal(t, []Need{
		{Requirement: "name", Field: "Name"},
		{Requirement: "store", Field: "Store"},
		{Requirement: "auditor", Field: "Auditor", Optional: true},
	}, needs)

	assert.Empty(t, RequirementsOf[struct{}]())
	assert.Empty(t, RequirementsOf[any]())
	assert.Len(t, RequirementsOf[*opDeps](), 3)
}

func Test_Populate(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	s := &memStore{name: "s"}
	require.NoError(t, reg.Instance("store", s))
	require.NoError(t, reg.Instance("name", "n"))

	var deps opDeps
	require.NoError(t, Populate(reg, &deps))

	assert.Same(t, s, deps.Store)
	assert.Equal(t, "n", deps.Name)
	assert.Nil(t, deps.Auditor, "missing optional stays zero")
}

// SharedDeps is embedded by pointer.
type SharedDeps struct {
	Store store `dep:"store"`
}

type pointerEmbedDeps struct {
	*SharedDeps
	Name string `dep:"name"`
}

func Test_Populate_EmbeddedPointer(t *testing.T) {
	t.Parallel()

	s := &memStore{name: "s"}
	full := NewRegistry()
	require.NoError(t, full.Instance("store", s))
	require.NoError(t, full.Instance("name", "n"))
	nameOnly := NewRegistry()
	require.NoError(t, nameOnly.Instance("name", "n"))

	tests := []struct {
		name    string
		reg     *Registry
		initial pointerEmbedDeps
		wantErr bool
	}{
		{name: "nil pointer is allocated", reg: full},
		{name: "existing pointer is populated", reg: full, initial: pointerEmbedDeps{SharedDeps: &SharedDeps{}}},
		{name: "failure leaves the target untouched", reg: nameOnly, initial: pointerEmbedDeps{SharedDeps: &SharedDeps{}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			deps := tt.initial
			shared := deps.SharedDeps
			err := Populate(tt.reg, &deps)
			if tt.wantErr {
				var rerr *ResolutionError
				require.ErrorAs(t, err, &rerr)
				assert.Equal(t, []error{MissingError{Requirement: "store"}}, rerr.Failures)
				assert.Empty(t, deps.Name)
				assert.Same(t, shared, deps.SharedDeps)
				assert.Nil(t, shared.Store)

				return
			}
			require.NoError(t, err)
			require.NotNil(t, deps.SharedDeps)
			assert.Same(t, s, deps.Store)
			assert.Equal(t, "n", deps.Name)
		})
	}

	assert.Equal(t, []Need{
		{Requirement: "store", Field: "Store"},
		{Requirement: "name", Field: "Name"},
	}, RequirementsOf[pointerEmbedDeps]())
}

func Test_Populate_UnexportedEmbeddedPointer(t *testing.T) {
	t.Parallel()

	type deps struct {
		*baseDeps
	}
	reg := NewRegistry()
	require.NoError(t, reg.Instance("name", "n"))

	var d deps
	require.Error(t, Populate(reg, &d))
	assert.Nil(t, d.baseDeps)
}

func Test_Populate_Optional_Present(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Instance("store", &memStore{}))
	require.NoError(t, reg.Instance("name", "n"))
	require.NoError(t, reg.Instance("auditor", nopAuditor{}))

	var deps opDeps
	require.NoError(t, Populate(reg, &deps))
	assert.Equal(t, nopAuditor{}, deps.Auditor)
}

func Test_Populate_CollectsAllFailures(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Instance("name", 7))

	deps := opDeps{Plain: 3}
	err := Populate(reg, &deps)
	require.Error(t, err)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	require.Len(t, resErr.Failures, 2)
	assert.Equal(t, []Requirement{"store"}, resErr.Missing())

	var wrong WrongTypeError
	require.ErrorAs(t, err, &wrong)
	assert.Equal(t, Requirement("name"), wrong.Requirement)

	assert.Equal(t, opDeps{Plain: 3}, deps, "target untouched on failure")
}

func Test_Populate_InvalidTargets(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()

	require.ErrorIs(t, Populate(reg, opDeps{}), ErrInvalidTarget)
	require.ErrorIs(t, Populate(reg, (*opDeps)(nil)), ErrInvalidTarget)

	var none any
	require.NoError(t, Populate(reg, &none))
	var empty struct{}
	require.NoError(t, Populate(reg, &empty))
}

func Test_Populate_UnexportedField(t *testing.T) {
	t.Parallel()

	type badDeps struct {
		store store `dep:"store"`
	}

	reg := NewRegistry()
	require.NoError(t, reg.Instance("store", &memStore{}))

	var deps badDeps
	err := Populate(reg, &deps)
	require.ErrorContains(t, err, "unexported")
	assert.Nil(t, deps.store)
}

func Test_Check(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Instance("name", "n"))

	err := Check(reg, RequirementsOf[opDeps]())
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, []Requirement{"store"}, resErr.Missing())

	require.NoError(t, reg.Instance("store", &memStore{}))
	require.NoError(t, Check(reg, RequirementsOf[opDeps]()))
}
