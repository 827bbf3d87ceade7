package ajax

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Signature describes a remotely callable method's parameters.
type Signature struct {
	// Parameters are the declared parameter names in order. The receiver and
	// a leading context.Context are not included.
	Parameters []string
	// Temporal names the parameters declared as time.Time (or *time.Time),
	// which are parsed from wire strings before the call.
	Temporal []string
}

// IsTemporal reports whether name is a temporal parameter.
func (s Signature) IsTemporal(name string) bool {
	return slices.Contains(s.Temporal, name)
}

func (s Signature) clone() Signature {
	return Signature{
		Parameters: slices.Clone(s.Parameters),
		Temporal:   slices.Clone(s.Temporal),
	}
}

// method holds reflection data for a registered method.
type method struct {
	name     string
	sig      Signature
	fn       reflect.Value
	receiver reflect.Type
	// params are the declared types, parallel to sig.Parameters.
	params   []reflect.Type
	takesCtx bool
	// returnsValue and returnsErr describe the result list.
	returnsValue bool
	returnsErr   bool
}

// Registry maps remotely callable method names to their signatures.
//
// A Registry is built once per handler type, usually as a package-level
// variable, and is immutable afterwards. It is safe for concurrent use.
type Registry struct {
	methods map[string]*method
}

// Definition is an argument to NewRegistry: see Method and Inherit.
type Definition interface {
	apply(b *builder)
}

type builder struct {
	bases   []*Registry
	methods []*method
}

type inheritDef []*Registry

func (d inheritDef) apply(b *builder) {
	b.bases = append(b.bases, d...)
}

// Inherit merges the methods of bases into the registry being built.
//
// Bases are applied left to right, each on top of the previous, across every
// Inherit passed to NewRegistry. Methods declared with Method are applied
// after all bases and replace inherited entries with the same name.
func Inherit(bases ...*Registry) Definition {
	return inheritDef(bases)
}

func (m *method) apply(b *builder) {
	b.methods = append(b.methods, m)
}

// Method marks fn as remotely callable under name.
//
// fn must be a method expression such as (*Calc).Add, whose first parameter
// is the receiver. It may take a context.Context right after the receiver;
// the dispatcher passes the request context there. params names the
// remaining parameters in declaration order, which is how JSON arguments
// are matched to them. fn may return nothing, an error, a value, or a value
// and an error.
//
// Method panics if fn does not have that shape, or if params does not name
// each parameter exactly once.
func Method(name string, fn any, params ...string) Definition {
	m, err := parseMethod(name, fn, params)
	if err != nil {
		panic(err)
	}
	return m
}

func parseMethod(name string, fn any, names []string) (*method, error) {
	if name == "" {
		return nil, fmt.Errorf("ajax: method name must not be empty")
	}
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, fmt.Errorf("ajax: method %s: %T is not a function", name, fn)
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return nil, fmt.Errorf("ajax: method %s: variadic functions are not supported", name)
	}
	if ft.NumIn() < 1 {
		return nil, fmt.Errorf("ajax: method %s: missing receiver parameter", name)
	}

	m := &method{
		name:     name,
		fn:       fv,
		receiver: ft.In(0),
	}

	first := 1
	if ft.NumIn() > 1 && ft.In(1) == contextType {
		m.takesCtx = true
		first = 2
	}

	if got, want := len(names), ft.NumIn()-first; got != want {
		return nil, fmt.Errorf("ajax: method %s: %d parameter names for %d parameters", name, got, want)
	}

	seen := make(map[string]bool, len(names))
	for i, pname := range names {
		if pname == "" {
			return nil, fmt.Errorf("ajax: method %s: parameter %d has an empty name", name, i)
		}
		if seen[pname] {
			return nil, fmt.Errorf("ajax: method %s: duplicate parameter name %q", name, pname)
		}
		seen[pname] = true

		pt := ft.In(first + i)
		m.params = append(m.params, pt)
		m.sig.Parameters = append(m.sig.Parameters, pname)
		if pt == timeType || (pt.Kind() == reflect.Pointer && pt.Elem() == timeType) {
			m.sig.Temporal = append(m.sig.Temporal, pname)
		}
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			m.returnsErr = true
		} else {
			m.returnsValue = true
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, fmt.Errorf("ajax: method %s: second result must be error, got %s", name, ft.Out(1))
		}
		m.returnsValue = true
		m.returnsErr = true
	default:
		return nil, fmt.Errorf("ajax: method %s: too many results (%d)", name, ft.NumOut())
	}

	return m, nil
}

// NewRegistry builds a frozen Registry from defs. It panics if two Method
// definitions share a name.
func NewRegistry(defs ...Definition) *Registry {
	var b builder
	for _, d := range defs {
		if d != nil {
			d.apply(&b)
		}
	}

	r := &Registry{methods: make(map[string]*method)}
	for _, base := range b.bases {
		if base == nil {
			continue
		}
		for name, m := range base.methods {
			r.methods[name] = m
		}
	}
	own := make(map[string]bool, len(b.methods))
	for _, m := range b.methods {
		if own[m.name] {
			panic("ajax: method name collision: " + m.name)
		}
		own[m.name] = true
		r.methods[m.name] = m
	}
	return r
}

// Len returns the number of registered methods.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.methods)
}

// Signature returns the signature registered under name.
func (r *Registry) Signature(name string) (Signature, bool) {
	if r == nil {
		return Signature{}, false
	}
	m, ok := r.methods[name]
	if !ok {
		return Signature{}, false
	}
	return m.sig.clone(), true
}

// Names returns the registered method names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ClientMethods maps each method name to its comma-joined parameter names,
// the form the client helper markup consumes.
func (r *Registry) ClientMethods() map[string]string {
	out := make(map[string]string, r.Len())
	if r == nil {
		return out
	}
	for name, m := range r.methods {
		out[name] = strings.Join(m.sig.Parameters, ",")
	}
	return out
}

func (r *Registry) lookup(name string) (*method, bool) {
	if r == nil {
		return nil, false
	}
	m, ok := r.methods[name]
	return m, ok
}
