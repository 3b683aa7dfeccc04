// Command operator-token mints a bearer token for a console operator.
//
//	operator-token -operator mlopez -ttl 720h
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cobranzas/backend/internal/infrastructure/auth"
	"github.com/cobranzas/backend/internal/infrastructure/config"
)

func main() {
	var (
		operator string
		ttl      time.Duration
	)
	flag.StringVar(&operator, "operator", "", "Operator name recorded in the audit trail (required)")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (default: jwt.token_expiration)")
	flag.Parse()

	operator = strings.TrimSpace(operator)
	if operator == "" {
		fmt.Fprintln(os.Stderr, "-operator is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "jwt.secret is not configured (set CONSOLE_JWT_SECRET)")
		os.Exit(1)
	}

	token, err := auth.NewJWTService(cfg.JWT).GenerateToken(operator, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "operator %s, expires %s\n", operator, token.ExpiresAt.Format(time.RFC3339))
	fmt.Println(token.AccessToken)
}
