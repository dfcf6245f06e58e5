package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	apperrors "meetly/pkg/errors"
)

var errRequestDeadline = errors.New("request deadline exceeded")

// deadlineWriter guards the response once the request deadline has fired:
// later writes from the still running handler are dropped.
type deadlineWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	expired bool
	started bool
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired || dw.started {
		return
	}
	dw.started = true
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired {
		return 0, http.ErrHandlerTimeout
	}
	dw.started = true
	return dw.ResponseWriter.Write(b)
}

// expire stops further handler writes and reports whether the response is
// still untouched.
func (dw *deadlineWriter) expire() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.expired = true
	return !dw.started
}

// RequestTimeout bounds each request. The handler context is cancelled with
// errRequestDeadline as its cause, and the caller receives a 504 unless the
// handler had already started writing. A request abandoned by the client gets
// no response.
func RequestTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeoutCause(r.Context(), timeout, errRequestDeadline)
			defer cancel()

			dw := &deadlineWriter{ResponseWriter: w}
			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
						return
					}
					close(done)
				}()
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case p := <-panicked:
				panic(p)
			case <-ctx.Done():
				untouched := dw.expire()
				if untouched && errors.Is(context.Cause(ctx), errRequestDeadline) {
					writeAppError(w, apperrors.Timeout("Request timeout"))
				}
			}
		})
	}
}
