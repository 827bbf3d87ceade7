package ajax

import (
	"fmt"
	"strings"
)

// ClientError is the failure a remotely callable method returns for
// problems the caller can fix: bad input, business rule violations.
// Its messages are sent to the client verbatim in a client-error response.
//
// Any other error returned from a method is treated as unexpected.
type ClientError struct {
	Messages []string
}

// NewClientError returns a ClientError carrying msgs.
func NewClientError(msgs ...string) *ClientError {
	return &ClientError{Messages: msgs}
}

// ClientErrorf returns a ClientError with a single formatted message.
func ClientErrorf(format string, args ...any) *ClientError {
	return &ClientError{Messages: []string{fmt.Sprintf(format, args...)}}
}

func (e *ClientError) Error() string {
	if e == nil || len(e.Messages) == 0 {
		return "ajax: client error"
	}
	return "ajax: client error: " + strings.Join(e.Messages, "; ")
}

// Failure wraps an unexpected error raised while handling a call. It is
// what the diagnostic sink receives.
type Failure struct {
	Func  string
	Err   error
	stack []byte
}

func (f *Failure) Error() string {
	return fmt.Sprintf("ajax: %s: %v", f.Func, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// FuncName returns the name of the function that failed.
func (f *Failure) FuncName() string { return f.Func }

// Stack returns the goroutine stack captured when a method panicked, or nil.
func (f *Failure) Stack() []byte { return f.stack }

// panicError carries a recovered panic value.
type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

func (p *panicError) Unwrap() error {
	if err, ok := p.value.(error); ok {
		return err
	}
	return nil
}
