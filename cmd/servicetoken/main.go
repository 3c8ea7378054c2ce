// Command servicetoken mints a bearer token for a backend service that calls
// the /v1/events ingestion API. It needs JWT_PRIVATE_KEY_PATH to point at the
// signing key.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/vintage-realtime/internal/config"
	"github.com/vintage-realtime/internal/domain"
	jwtinfra "github.com/vintage-realtime/internal/infrastructure/jwt"
)

type signer interface {
	Sign(userID, role string) (string, error)
}

func main() {
	subject := flag.String("subject", "", "calling service name, e.g. catalog")
	role := flag.String("role", domain.RoleService, "SERVICE or ADMIN")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	provider, err := jwtinfra.NewProvider(config.Load())
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}
	token, err := mint(provider, *subject, *role)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Fprintln(os.Stdout, token)
}

// mint signs a token for subject. Only the roles the ingestion API accepts are allowed.
func mint(s signer, subject, role string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required: %w", domain.ErrBadRequest)
	}
	if role != domain.RoleService && role != domain.RoleAdmin {
		return "", fmt.Errorf("role %q cannot call the events API: %w", role, domain.ErrBadRequest)
	}
	token, err := s.Sign(subject, role)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
