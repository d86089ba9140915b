// Package main provides the catalog login tool.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/zora/internal/infra/catalog"
)

var (
	app      = kingpin.New("zora-auth", "Catalog login tool for zora")
	apiURL   = app.Flag("api-url", "Catalog API base URL").Envar("ZORA_API_URL").Default("http://localhost:8000/api").String()
	email    = app.Flag("email", "Account email").Envar("ZORA_EMAIL").Required().String()
	password = app.Flag("password", "Account password (prompted when empty)").Envar("ZORA_PASSWORD").String()
	timeout  = app.Flag("timeout", "Request timeout").Default("10s").Duration()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	pw := *password
	if pw == "" {
		fmt.Print("Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Printf("Error: failed to read password: %v\n", err)
			os.Exit(1)
		}
		pw = strings.TrimRight(line, "\r\n")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+5*time.Second)
	defer cancel()

	session, err := catalog.Login(ctx, *apiURL, *email, pw, *timeout)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("")
	fmt.Println("=== Login Successful ===")
	fmt.Println("")
	fmt.Printf("User: %s (%s)\n", session.User.Key(), session.User.Email)
	fmt.Println("")
	fmt.Println("Add this to your player.yaml:")
	fmt.Println("")
	fmt.Printf("user: \"%s\"\n", session.User.Key())
	fmt.Println("api:")
	fmt.Printf("  refresh_token: \"%s\"\n", session.RefreshToken)
	fmt.Println("")
	fmt.Println("Or set as environment variables:")
	fmt.Printf("export ZORA_USER=\"%s\"\n", session.User.Key())
	fmt.Printf("export ZORA_ACCESS_TOKEN=\"%s\"\n", session.AccessToken)
	fmt.Printf("export ZORA_REFRESH_TOKEN=\"%s\"\n", session.RefreshToken)
}
