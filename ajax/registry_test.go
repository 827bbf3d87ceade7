package ajax

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ParametersInDeclarationOrder(t *testing.T) {
	sig, ok := calcMethods.Signature("add_days")
	require.True(t, ok)
	assert.Equal(t, []string{"when", "days"}, sig.Parameters)
	assert.Equal(t, []string{"when"}, sig.Temporal)
	assert.True(t, sig.IsTemporal("when"))
	assert.False(t, sig.IsTemporal("days"))
}

func TestRegistry_ContextParameterIsNotASignatureParameter(t *testing.T) {
	sig, ok := calcMethods.Signature("deadline")
	require.True(t, ok)
	assert.Equal(t, []string{"when"}, sig.Parameters)
	assert.Equal(t, []string{"when"}, sig.Temporal, "*time.Time is temporal too")
}

func TestRegistry_NamesAndClientMethods(t *testing.T) {
	assert.Equal(t, 6, calcMethods.Len())
	assert.Equal(t, []string{
		"add_days",
		"deadline",
		"explode",
		"sum_numbers",
		"sum_numbers_client_error",
		"sum_numbers_server_error",
	}, calcMethods.Names())

	js := calcMethods.ClientMethods()
	assert.Equal(t, "when,days", js["add_days"])
	assert.Equal(t, "numbers", js["sum_numbers"])
}

func TestRegistry_Empty(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Names())
	assert.Empty(t, r.ClientMethods())
	_, ok := r.Signature("anything")
	assert.False(t, ok)

	var nilReg *Registry
	assert.Equal(t, 0, nilReg.Len())
	assert.Empty(t, nilReg.ClientMethods())
}

func TestRegistry_SignatureIsACopy(t *testing.T) {
	sig, _ := calcMethods.Signature("add_days")
	sig.Parameters[0] = "changed"
	sig.Temporal = nil

	again, _ := calcMethods.Signature("add_days")
	assert.Equal(t, []string{"when", "days"}, again.Parameters)
	assert.Equal(t, []string{"when"}, again.Temporal)
}

func TestRegistry_InheritKeepsAncestorMethods(t *testing.T) {
	for _, name := range calcMethods.Names() {
		_, ok := sciMethods.Signature(name)
		assert.True(t, ok, "inherited %s", name)
	}
	_, ok := sciMethods.Signature("square")
	assert.True(t, ok)
	_, ok = calcMethods.Signature("square")
	assert.False(t, ok, "child methods must not leak into the parent")
}

func TestRegistry_ChildReplacesSameName(t *testing.T) {
	m, ok := sciMethods.lookup("sum_numbers")
	require.True(t, ok)
	assert.Equal(t, "*ajax.Sci", m.receiver.String())

	m, ok = calcMethods.lookup("sum_numbers")
	require.True(t, ok)
	assert.Equal(t, "*ajax.Calc", m.receiver.String())
}

type first struct{}

func (first) A(x int) int { return x }

func (first) Shared(x, y int) int { return x + y }

type second struct{}

func (second) B() string { return "b" }

func (second) Shared(z string) int { return len(z) }

func TestRegistry_BasesMergeLeftToRight(t *testing.T) {
	a := NewRegistry(
		Method("a", first.A, "x"),
		Method("shared", first.Shared, "x", "y"),
	)
	b := NewRegistry(
		Method("b", second.B),
		Method("shared", second.Shared, "z"),
	)

	ab := NewRegistry(Inherit(a, b))
	sig, _ := ab.Signature("shared")
	assert.Equal(t, []string{"z"}, sig.Parameters)

	ba := NewRegistry(Inherit(b), Inherit(a))
	sig, _ = ba.Signature("shared")
	assert.Equal(t, []string{"x", "y"}, sig.Parameters)

	assert.ElementsMatch(t, []string{"a", "b", "shared"}, ab.Names())
}

func TestRegistry_OwnMethodsApplyAfterBasesWhateverTheOrder(t *testing.T) {
	a := NewRegistry(Method("shared", first.Shared, "x", "y"))
	r := NewRegistry(
		Method("shared", second.Shared, "z"),
		Inherit(a),
	)
	sig, _ := r.Signature("shared")
	assert.Equal(t, []string{"z"}, sig.Parameters)
}

func TestMethod_AcceptedResultLists(t *testing.T) {
	r := NewRegistry(
		Method("none", func(*Calc) {}),
		Method("err", func(*Calc) error { return nil }),
		Method("value", func(*Calc) int { return 1 }),
		Method("both", func(*Calc, context.Context, time.Time) (int, error) { return 1, nil }, "t"),
	)
	assert.Equal(t, 4, r.Len())
}

func TestMethod_PanicsOnBadDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		define func()
	}{
		{"not a function", func() { Method("x", 42) }},
		{"nil function", func() { Method("x", (func(*Calc))(nil)) }},
		{"no receiver", func() { Method("x", func() {}) }},
		{"empty name", func() { Method("", (*Calc).SumNumbers, "numbers") }},
		{"too few names", func() { Method("x", (*Calc).AddDays, "when") }},
		{"too many names", func() { Method("x", (*Calc).SumNumbers, "numbers", "extra") }},
		{"empty param name", func() { Method("x", (*Calc).SumNumbers, "") }},
		{"duplicate param name", func() { Method("x", (*Calc).AddDays, "when", "when") }},
		{"variadic", func() { Method("x", func(*Calc, ...int) {}, "xs") }},
		{"second result not error", func() { Method("x", func(*Calc) (int, int) { return 0, 0 }) }},
		{"three results", func() { Method("x", func(*Calc) (int, int, error) { return 0, 0, nil }) }},
		{"name collision", func() {
			NewRegistry(
				Method("x", (*Calc).SumNumbers, "numbers"),
				Method("x", (*Calc).AddDays, "when", "days"),
			)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.define)
		})
	}
}
