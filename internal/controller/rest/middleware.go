package rest

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// OperatorHeader идентификатор оператора для журнала аудита
const OperatorHeader = "X-Operator"

// Operator кладёт X-Operator в контекст запроса
func Operator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := strings.TrimSpace(r.Header.Get(OperatorHeader)); actor != "" {
			r = r.WithContext(model.WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger пишет каждый запрос в zap
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// Recoverer превращает панику в 500 с обычным конвертом ошибки
func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("Panic in handler",
						zap.String("path", r.URL.Path),
						zap.Any("panic", rec),
						zap.Stack("stack"),
					)
					BuildErrorResponse(logger, w, fmt.Errorf("panic: %v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
