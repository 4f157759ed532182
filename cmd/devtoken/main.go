// devtoken prints a bearer token for local testing of the API.
//
//	go run ./cmd/devtoken -user alice
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/auth"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/config"
)

func main() {
	user := flag.String("user", "", "user ID to put in the token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	path := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "devtoken: -user is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}

	token, err := auth.NewManager(cfg.Auth.JWT.SigningKey, cfg.Auth.JWT.Issuer).Issue(*user, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
