// Package main generates tokens for exercising the mock backend: bearer
// tokens for an existing account and unsigned-looking Google ID tokens the
// mock accepts at auth/google. They will NOT work against a real backend.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ereader/internal/mockbackend"
)

const defaultTokenTTL = 24 * time.Hour

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	sessionCmd := flag.NewFlagSet("session", flag.ExitOnError)
	googleCmd := flag.NewFlagSet("google", flag.ExitOnError)

	sessionUserID := sessionCmd.Int("user-id", 1001, "account id (the demo account is 1001)")
	sessionSecret := sessionCmd.String("secret", os.Getenv("EREADER_MOCK_SECRET"), "mock backend signing secret")
	sessionTTL := sessionCmd.Duration("ttl", defaultTokenTTL, "token time-to-live")
	sessionJSON := sessionCmd.Bool("json", false, "output as JSON")

	googleEmail := googleCmd.String("email", "", "account email (required)")
	googleName := googleCmd.String("name", "", "display name")
	googleJSON := googleCmd.Bool("json", false, "output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "session":
		_ = sessionCmd.Parse(os.Args[2:])
		generateSessionToken(*sessionUserID, *sessionSecret, *sessionTTL, *sessionJSON)
	case "google":
		_ = googleCmd.Parse(os.Args[2:])
		generateGoogleToken(*googleEmail, *googleName, *googleJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - generate tokens for the ereader mock backend

Usage:
  tokengen session [-user-id N] [-secret S] [-ttl 24h] [-json]
  tokengen google -email E [-name N] [-json]

The session secret must match the one the mock backend was started with
(EREADER_MOCK_SECRET).`)
}

func generateSessionToken(userID int, secret string, ttl time.Duration, jsonOutput bool) {
	if secret == "" {
		fail("a signing secret is required (-secret or EREADER_MOCK_SECRET)")
	}
	token, _, err := mockbackend.NewIssuer(secret, ttl, time.Now).Issue(userID)
	if err != nil {
		fail(err.Error())
	}
	emit(jsonOutput, tokenOutput{
		Token:     token,
		Type:      "Bearer",
		ExpiresIn: ttl.String(),
		Usage: map[string]string{
			"curl": "curl -H \"Authorization: Bearer <token>\" http://localhost:8081/api/user/profile",
		},
	})
}

func generateGoogleToken(email, name string, jsonOutput bool) {
	if email == "" {
		fail("-email is required")
	}
	claims := jwt.MapClaims{
		"iss":   "https://accounts.google.com",
		"sub":   uuid.NewString(),
		"email": email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	if name != "" {
		claims["name"] = name
	}
	// The mock backend does not check the signature; any key will do.
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(uuid.NewString()))
	if err != nil {
		fail(err.Error())
	}
	emit(jsonOutput, tokenOutput{
		Token: token,
		Type:  "Google ID token",
		Usage: map[string]string{
			"cli": "ereader google-login --id-token <token>",
		},
	})
}

func emit(jsonOutput bool, out tokenOutput) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}
	fmt.Println(out.Type)
	fmt.Println()
	fmt.Println(out.Token)
	for k, v := range out.Usage {
		fmt.Printf("\n%s: %s\n", k, v)
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "error:", msg)
	os.Exit(1)
}
