package ajax

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Args holds a call's named arguments. Values are json.RawMessage as they
// arrived on the wire, or Go values the dispatcher already converted, such
// as the time.Time of a temporal parameter.
type Args map[string]any

// Callable invokes one remotely callable method with named arguments.
type Callable func(ctx context.Context, args Args) (any, error)

// Resolver finds the Callable for a method name.
type Resolver interface {
	Resolve(name string) (Callable, bool)
}

// ResolverFunc adapts a function to a Resolver.
type ResolverFunc func(name string) (Callable, bool)

func (f ResolverFunc) Resolve(name string) (Callable, bool) {
	return f(name)
}

// Bind returns a Resolver that calls the registry's methods on handler.
//
// Each method's receiver is handler itself when its type fits, otherwise
// the shallowest embedded field of handler that fits, the way Go promotes
// methods from embedded types. A method with no fitting receiver does not
// resolve.
func (r *Registry) Bind(handler any) Resolver {
	hv := reflect.ValueOf(handler)
	return ResolverFunc(func(name string) (Callable, bool) {
		m, ok := r.lookup(name)
		if !ok {
			return nil, false
		}
		recv, ok := findReceiver(hv, m.receiver)
		if !ok {
			return nil, false
		}
		return func(ctx context.Context, args Args) (any, error) {
			return m.call(ctx, recv, args)
		}, true
	})
}

// findReceiver searches v and then its embedded fields, breadth first, for
// a value assignable to want.
func findReceiver(v reflect.Value, want reflect.Type) (reflect.Value, bool) {
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	queue := []reflect.Value{v}
	for depth := 0; len(queue) > 0 && depth < 8; depth++ {
		var next []reflect.Value
		for _, cur := range queue {
			if cur.Type().AssignableTo(want) {
				return cur, true
			}
			if cur.Kind() == reflect.Pointer && cur.Elem().IsValid() && cur.Elem().Type().AssignableTo(want) {
				return cur.Elem(), true
			}
			if cur.Kind() != reflect.Pointer && cur.CanAddr() && cur.Addr().Type().AssignableTo(want) {
				return cur.Addr(), true
			}

			s := cur
			for s.Kind() == reflect.Pointer || s.Kind() == reflect.Interface {
				if s.IsNil() {
					break
				}
				s = s.Elem()
			}
			if s.Kind() != reflect.Struct {
				continue
			}
			for i := 0; i < s.NumField(); i++ {
				sf := s.Type().Field(i)
				if !sf.Anonymous || !sf.IsExported() {
					continue
				}
				f := s.Field(i)
				if (f.Kind() == reflect.Pointer || f.Kind() == reflect.Interface) && f.IsNil() {
					continue
				}
				next = append(next, f)
			}
		}
		queue = next
	}
	return reflect.Value{}, false
}

// call binds args to the method's parameters by name and invokes it.
func (m *method) call(ctx context.Context, recv reflect.Value, args Args) (result any, err error) {
	in := make([]reflect.Value, 0, len(m.params)+2)
	in = append(in, recv)
	if m.takesCtx {
		if ctx == nil {
			ctx = context.Background()
		}
		in = append(in, reflect.ValueOf(ctx))
	}

	var unknown []string
	for name := range args {
		if !slices.Contains(m.sig.Parameters, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, fmt.Errorf("ajax: %s got unexpected arguments: %s", m.name, strings.Join(unknown, ", "))
	}

	for i, name := range m.sig.Parameters {
		v, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("ajax: %s missing argument %q", m.name, name)
		}
		pv, err := argValue(v, m.params[i])
		if err != nil {
			return nil, fmt.Errorf("ajax: %s argument %q: %w", m.name, name, err)
		}
		in = append(in, pv)
	}

	out := m.fn.Call(in)

	if m.returnsErr {
		if e := out[len(out)-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
	}
	if m.returnsValue {
		result = out[0].Interface()
	}
	return result, err
}

// argValue converts one argument into a value of type t.
func argValue(v any, t reflect.Type) (reflect.Value, error) {
	if raw, ok := v.(json.RawMessage); ok {
		p := reflect.New(t)
		if err := json.Unmarshal(raw, p.Interface()); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	}

	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(t):
		return rv, nil
	case t.Kind() == reflect.Pointer && rv.Type().AssignableTo(t.Elem()):
		p := reflect.New(t.Elem())
		p.Elem().Set(rv)
		return p, nil
	}

	// Values supplied by Go callers rather than the wire: round-trip through
	// JSON so that, for example, a float64 can fill an int parameter.
	b, err := json.Marshal(v)
	if err != nil {
		return reflect.Value{}, err
	}
	return argValue(json.RawMessage(b), t)
}
