package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORS builds the cors.Handler wiring from cmd/server/main.go, parameterized
// on the configured origin list.
func CORS(origins string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(origins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "User-Id"},
		AllowCredentials: true,
	})
	return c.Handler
}
