package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/mnehpets/ajaxview/endpoint"
)

// RateLimitProcessor bounds the rate of ajax calls with a token bucket
// shared by all clients of the view it guards.
//
// Only unsafe requests (the POSTed calls) draw tokens; page loads pass
// through. A call over the limit stops the chain with 429 and a
// Retry-After hint in whole seconds.
type RateLimitProcessor struct {
	limiter *rate.Limiter
}

// NewRateLimitProcessor allows perSecond calls per second on average with
// bursts of up to burst calls.
func NewRateLimitProcessor(perSecond float64, burst int) *RateLimitProcessor {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitProcessor{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Process implements endpoint.Processor.
func (p *RateLimitProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	if safeMethod(r.Method) {
		return next(w, r)
	}

	res := p.limiter.Reserve()
	if !res.OK() {
		return endpoint.Error(http.StatusTooManyRequests, "", nil)
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter(delay)))
		return endpoint.Error(http.StatusTooManyRequests, "", nil)
	}
	return next(w, r)
}

func retryAfter(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

var _ endpoint.Processor = (*RateLimitProcessor)(nil)
