package rest

import (
	"fmt"
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"golang.org/x/time/rate"
)

type rateLimitMiddleware struct {
	limiter *rate.Limiter
}

// NewRateLimitMiddleware returns an implementation of gimlet.Middleware that
// rejects requests beyond limit per second, allowing bursts of burst
// requests, with 429.
func NewRateLimitMiddleware(limit float64, burst int) gimlet.Middleware {
	return &rateLimitMiddleware{limiter: rate.NewLimiter(rate.Limit(limit), burst)}
}

func (m *rateLimitMiddleware) ServeHTTP(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	if !m.limiter.Allow() {
		grip.Info(message.Fields{
			"message": "rate limited request",
			"request": gimlet.GetRequestID(r.Context()),
			"method":  r.Method,
			"route":   r.URL.Path,
		})
		gimlet.WriteResponse(rw, gimlet.MakeJSONErrorResponder(gimlet.ErrorResponse{
			StatusCode: http.StatusTooManyRequests,
			Message:    fmt.Sprintf("too many requests, the limit is %g per second", float64(m.limiter.Limit())),
		}))
		return
	}

	next(rw, r)
}
