package middlewares

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORSMiddleware creates a CORS middleware with the specified allowed origins.
// Credentials are only allowed when the origin list is explicit.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", RequestIDHeader, "X-API-Key"},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: !slices.Contains(allowedOrigins, "*"),
		MaxAge:           3600,
	})
}
