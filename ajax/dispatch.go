package ajax

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"unicode/utf8"

	"github.com/mnehpets/ajaxview/logging"
)

// Invalid-request messages.
const (
	msgCannotParse = "Cannot parse JSON body"
	msgNoFunc      = "No func specified"
	msgNoArgs      = "No args specified"
	msgArgsNotDict = "args must be dict"
	msgNoSuchFunc  = "No such ajax function: "
)

// Dispatch handles one call envelope.
//
// The body is validated in order: it must be a UTF-8 JSON object, "func" must be
// present and truthy, "args" must be present, non-null and an object, and
// "func" must name a method in reg. The first failure yields an
// invalid-request response. Temporal arguments are then parsed and the
// method resolved through resolver is invoked.
//
// A returned ClientError yields a client-error response. Any other error or
// panic, including a temporal argument that does not parse, is reported to
// sink as "Error processing <func>" and yields a server-error response.
// A nil sink uses logging.Default().
func Dispatch(ctx context.Context, body []byte, reg *Registry, resolver Resolver, sink logging.Sink) *Response {
	if sink == nil {
		sink = logging.Default()
	}

	// Members are looked up by exact key; a struct target would match
	// "Func" or "ARGS" too.
	var env map[string]json.RawMessage
	if !utf8.Valid(body) || firstByte(body) != '{' || json.Unmarshal(body, &env) != nil {
		return invalidRequest(msgCannotParse)
	}

	name, ok := funcName(env["func"])
	if !ok {
		return invalidRequest(msgNoFunc)
	}

	rawArgs := env["args"]
	if isNull(rawArgs) {
		return invalidRequest(msgNoArgs)
	}
	var raw map[string]json.RawMessage
	if firstByte(rawArgs) != '{' || json.Unmarshal(rawArgs, &raw) != nil {
		return invalidRequest(msgArgsNotDict)
	}

	m, ok := reg.lookup(name)
	if !ok {
		return invalidRequest(msgNoSuchFunc + name)
	}

	args := make(Args, len(raw))
	for k, v := range raw {
		args[k] = v
	}

	value, err := invoke(ctx, name, m.sig.Temporal, args, resolver)
	if err == nil {
		return &Response{Kind: KindComplete, ReturnValue: value}
	}

	var ce *ClientError
	if errors.As(err, &ce) {
		return clientError(ce)
	}

	var f *Failure
	if !errors.As(err, &f) {
		f = &Failure{Func: name, Err: err}
	}
	sink.Exception("Error processing "+name, f)
	return serverError()
}

// invoke coerces temporal arguments, runs the resolved method and encodes
// its return value. Panics, including those raised while encoding, are
// recovered into a Failure carrying the stack; a panic with a ClientError
// value is returned as that ClientError.
func invoke(ctx context.Context, name string, temporal []string, args Args, resolver Resolver) (value json.RawMessage, err error) {
	defer func() {
		if p := recover(); p != nil {
			if ce, ok := p.(*ClientError); ok {
				err = ce
				return
			}
			err = &Failure{Func: name, Err: &panicError{value: p}, stack: debug.Stack()}
		}
	}()

	if err := coerceTemporal(args, temporal); err != nil {
		return nil, err
	}

	if resolver == nil {
		return nil, fmt.Errorf("ajax: no resolver for %s", name)
	}
	call, ok := resolver.Resolve(name)
	if !ok || call == nil {
		return nil, fmt.Errorf("ajax: %s is registered but does not resolve on this handler", name)
	}
	result, err := call(ctx, args)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(wireValue(result))
	if err != nil {
		return nil, &Failure{Func: name, Err: fmt.Errorf("encode return value: %w", err)}
	}
	return b, nil
}

// funcName extracts the method name from the raw "func" member. A falsy
// value (absent, null, "", false, 0, [] or {}) reports false. A truthy value
// that is not a string is named by its JSON text.
func funcName(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case bool:
		return "true", t
	case float64:
		return string(bytes.TrimSpace(raw)), t != 0
	case []any:
		return string(bytes.TrimSpace(raw)), len(t) > 0
	case map[string]any:
		return string(bytes.TrimSpace(raw)), len(t) > 0
	}
	return "", false
}

func isNull(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

func firstByte(raw json.RawMessage) byte {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
