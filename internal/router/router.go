package router

import (
	"net/http"

	"Mansoor88-6/time-targets-agent/internal/handler"

	"go.uber.org/zap"
)

func New(targetHandler *handler.TargetHandler, statusHandler *handler.StatusHandler, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Time target endpoints
	mux.HandleFunc("/api/v1/targets", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			targetHandler.ListTargets(w, r)
		case http.MethodPut:
			targetHandler.PutTarget(w, r)
		case http.MethodDelete:
			targetHandler.DeleteTarget(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/progress", methodOnly(http.MethodGet, targetHandler.GetProgress))
	mux.HandleFunc("/api/v1/status", methodOnly(http.MethodGet, statusHandler.GetStatus))
	mux.HandleFunc("/api/v1/refresh", methodOnly(http.MethodPost, statusHandler.Refresh))

	// Logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)
		mux.ServeHTTP(w, r)
	})
}

func methodOnly(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}
