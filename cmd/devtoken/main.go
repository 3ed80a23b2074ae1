// Command devtoken prints an access token accepted by a server running
// with the same JWT_SECRET, for trying the API without the hosted auth
// service:
//
//	TOKEN=$(go run ./cmd/devtoken -name Asha)
//	curl -H "Authorization: Bearer $TOKEN" localhost:8080/api/profile
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/sakif/medhistory/internal/auth"
)

func main() {
	_ = godotenv.Load()

	user := flag.String("user", "", "user ID (default: a new random UUID)")
	email := flag.String("email", "dev@example.com", "email claim")
	name := flag.String("name", "", "display name claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *user == "" {
		*user = uuid.NewString()
	}

	tokens, err := auth.NewTokenService(os.Getenv("JWT_SECRET"), os.Getenv("JWT_ISSUER"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}

	token, err := tokens.Generate(auth.Identity{UserID: *user, Email: *email, Name: *name}, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
