// Command fishlog-token mints a session token the local sync API accepts.
// It signs with the same APP_TOKEN_SIGN_KEY / APP_TOKEN_ISSUER the daemon
// verifies with, so a developer can drive the API with curl without the
// hosted auth provider.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/caarlos0/env/v11"
)

type signer struct {
	SignKey string `env:"APP_TOKEN_SIGN_KEY"`
	Issuer  string `env:"APP_TOKEN_ISSUER"`
}

func main() {
	log := logger.NewLogger("fishlog-token")
	if err := run(os.Args[1:], env.ToMap(os.Environ()), os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("mint session token")
	}
}

func run(args []string, environ map[string]string, out io.Writer) error {
	var s signer
	if err := env.ParseWithOptions(&s, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("read signer settings: %w", err)
	}

	fs := flag.NewFlagSet("fishlog-token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	userID := fs.String("user", "", "User id (token subject)")
	email := fs.String("email", "", "Account email, used for key derivation")
	ttl := fs.Duration("ttl", 12*time.Hour, "Token lifetime")
	fs.StringVar(&s.SignKey, "token-sign-key", s.SignKey, "Token signing key")
	fs.StringVar(&s.Issuer, "token-issuer", s.Issuer, "Token issuer")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *userID == "" || *email == "" {
		return errors.New("both -user and -email are required")
	}
	if *ttl <= 0 {
		return errors.New("-ttl must be positive")
	}

	_, signed, err := utils.GenerateJWTToken(s.Issuer, *userID, *email, *ttl, s.SignKey)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, signed)
	return err
}
