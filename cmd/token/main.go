package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/YashSaini213/virtual-conference-translator/internal/auth"
)

func main() {
	secret := flag.String("secret", os.Getenv("DEV_TOKEN_SECRET"), "HS256 dev token secret")
	sub := flag.String("sub", "", "User ID (subject claim)")
	name := flag.String("name", "", "Display name")
	role := flag.String("role", "", "Role, e.g. host")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *secret == "" || *sub == "" {
		fmt.Fprintln(os.Stderr, "Usage: token -secret <dev-secret> -sub <user-id> [-name <name>] [-role host] [-ttl 24h]")
		fmt.Fprintln(os.Stderr, "  Reads the secret from DEV_TOKEN_SECRET if -secret not specified")
		os.Exit(1)
	}

	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   *sub,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(*ttl)),
		},
		Name: *name,
		Role: *role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(signed)
}
