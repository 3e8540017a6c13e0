package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// Generates a signed JWT for exercising the SOS gateway locally.
//
//	go run gen-token.go -secret dev-secret -role supervisor -id sup-1 -name Priya
func main() {
	secret := flag.String("secret", "", "HMAC secret the gateway was started with")
	id := flag.String("id", "miner-1", "Subject user id")
	name := flag.String("name", "Test User", "Display name")
	role := flag.String("role", "worker", "Role: worker, supervisor or admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *secret == "" {
		log.Fatal("-secret is required")
	}
	switch *role {
	case "worker", "supervisor", "admin":
	default:
		log.Fatalf("unknown role %q", *role)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  *id,
		"name": *name,
		"role": *role,
		"iat":  now.Unix(),
		"exp":  now.Add(*ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*secret))
	if err != nil {
		log.Fatalf("signing token: %v", err)
	}
	fmt.Println(token)
}
