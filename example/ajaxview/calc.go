package main

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/mnehpets/ajaxview/ajax"
)

// Calc is a small calculator exposed over ajax.
type Calc struct{}

func (c *Calc) SumNumbers(numbers []float64) float64 {
	total := 0.0
	for _, n := range numbers {
		total += n
	}
	return total
}

func (c *Calc) Divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, ajax.NewClientError("cannot divide by zero")
	}
	return a / b, nil
}

func (c *Calc) AddDays(when time.Time, days int) time.Time {
	return when.AddDate(0, 0, days)
}

func (c *Calc) Fail() error {
	return errors.New("this always fails")
}

var calcMethods = ajax.NewRegistry(
	ajax.Method("sum_numbers", (*Calc).SumNumbers, "numbers"),
	ajax.Method("divide", (*Calc).Divide, "a", "b"),
	ajax.Method("add_days", (*Calc).AddDays, "when", "days"),
	ajax.Method("fail", (*Calc).Fail),
)

// SciCalc extends Calc with a few scientific functions and a slow call that
// honors request cancellation.
type SciCalc struct {
	*Calc
}

func (s *SciCalc) Sqrt(x float64) (float64, error) {
	if x < 0 {
		return 0, ajax.ClientErrorf("sqrt of negative number %v", x)
	}
	return math.Sqrt(x), nil
}

func (s *SciCalc) Pow(base, exp float64) float64 {
	return math.Pow(base, exp)
}

func (s *SciCalc) Slow(ctx context.Context, seconds float64) (string, error) {
	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
		return "done", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

var sciMethods = ajax.NewRegistry(
	ajax.Inherit(calcMethods),
	ajax.Method("sqrt", (*SciCalc).Sqrt, "x"),
	ajax.Method("pow", (*SciCalc).Pow, "base", "exp"),
	ajax.Method("slow", (*SciCalc).Slow, "seconds"),
)
