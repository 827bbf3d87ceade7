// Package ajax exposes a handler's methods as a single HTTP endpoint,
// routed by a function name in the JSON body rather than by URL path.
//
// # Registration
//
// Each handler type declares its remotely callable methods once, as a
// package-level Registry built from method expressions:
//
//	type Calc struct{}
//
//	func (c *Calc) SumNumbers(numbers []int) int { ... }
//	func (c *Calc) AddDays(when time.Time, days int) time.Time { ... }
//
//	var calcMethods = ajax.NewRegistry(
//		ajax.Method("sum_numbers", (*Calc).SumNumbers, "numbers"),
//		ajax.Method("add_days", (*Calc).AddDays, "when", "days"),
//	)
//
// Parameters declared as time.Time are temporal: their wire strings
// (YYYY-MM-DDTHH:MM:SS.ffffffZ) are parsed before the call, and a null or
// malformed one fails the call with a server-error. Returned times, alone or
// inside slices and maps, are written as YYYY-MM-DDTHH:MM:SS[.mmm] with no
// zone. Struct fields are left to encoding/json, which writes a time.Time
// field as RFC 3339; declare such fields as Timestamp to get the response
// format.
//
// A handler type that embeds another extends its registry with Inherit:
//
//	type Sci struct{ *Calc }
//
//	var sciMethods = ajax.NewRegistry(
//		ajax.Inherit(calcMethods),
//		ajax.Method("sum_numbers", (*Sci).SumNumbers, "numbers"), // replaces Calc's
//	)
//
// # Wire protocol
//
// A call is a POST with body
//
//	{"func": "sum_numbers", "args": {"numbers": [1, 2, 3]}}
//
// and is answered with one of
//
//	200 {"response_type": "complete", "return_value": 6}
//	400 {"response_type": "invalid-request", "errors": ["No func specified"]}
//	400 {"response_type": "client-error", "errors": ["numbers must not be empty"]}
//	500 {"response_type": "server-error"}
//
// Methods report caller-fixable problems by returning a *ClientError. Any
// other error or panic is logged to the view's logging.Sink and answered
// with a server-error that carries no detail.
//
// # Client helper
//
// View renders a small script for GET requests that installs
// window.ajax.<method>(...) functions (the global's name is configurable)
// which issue calls with the page's CSRF token.
package ajax
