package ajax

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Calc is the handler most tests call into.
type Calc struct{}

func (c *Calc) SumNumbers(numbers []int) int {
	total := 0
	for _, n := range numbers {
		total += n
	}
	return total
}

func (c *Calc) SumNumbersServerError(numbers []int) (int, error) {
	return 0, errors.New("I suck")
}

func (c *Calc) SumNumbersClientError(numbers []int) (int, error) {
	return 0, NewClientError("You suck")
}

func (c *Calc) AddDays(when time.Time, days int) time.Time {
	return when.AddDate(0, 0, days)
}

func (c *Calc) Deadline(ctx context.Context, when *time.Time) (bool, error) {
	return ctx != nil && !when.IsZero(), nil
}

func (c *Calc) Explode(reason string) {
	panic(reason)
}

var calcMethods = NewRegistry(
	Method("sum_numbers", (*Calc).SumNumbers, "numbers"),
	Method("sum_numbers_server_error", (*Calc).SumNumbersServerError, "numbers"),
	Method("sum_numbers_client_error", (*Calc).SumNumbersClientError, "numbers"),
	Method("add_days", (*Calc).AddDays, "when", "days"),
	Method("deadline", (*Calc).Deadline, "when"),
	Method("explode", (*Calc).Explode, "reason"),
)

// Sci embeds Calc, inherits its methods and replaces sum_numbers.
type Sci struct {
	*Calc
	Factor int
}

func (s *Sci) SumNumbers(numbers []int) int {
	return s.Calc.SumNumbers(numbers) * s.Factor
}

func (s *Sci) Square(x float64) float64 {
	return x * x
}

var sciMethods = NewRegistry(
	Inherit(calcMethods),
	Method("sum_numbers", (*Sci).SumNumbers, "numbers"),
	Method("square", (*Sci).Square, "x"),
)

// recordingSink remembers every Exception call.
type recordingSink struct {
	mu    sync.Mutex
	calls []sinkCall
}

type sinkCall struct {
	msg string
	err error
}

func (s *recordingSink) Exception(msg string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{msg: msg, err: err})
}

func (s *recordingSink) Calls() []sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkCall(nil), s.calls...)
}
