// Command apikey stores a provider API key in the integration_tokens table
// so the API can start without the key in its environment.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"autovideo/internal/infra"
	"autovideo/internal/infra/credentials"
)

var envKeys = map[string]string{
	credentials.ProviderAnthropic:  "ANTHROPIC_API_KEY",
	credentials.ProviderPexels:     "PEXELS_API_KEY",
	credentials.ProviderElevenLabs: "ELEVENLABS_API_KEY",
}

func main() {
	var (
		keyFlag      string
		providerFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "API key for the selected provider (falls back to the provider's environment variable)")
	flag.StringVar(&providerFlag, "provider", "", "provider to configure: "+strings.Join(credentials.Providers, ", "))
	flag.Parse()

	_ = godotenv.Load()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	envKey, ok := envKeys[provider]
	if !ok {
		fmt.Fprintf(os.Stderr, "unsupported provider %q (want one of %s)\n", providerFlag, strings.Join(credentials.Providers, ", "))
		os.Exit(2)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(envKey))
	}
	if key == "" {
		fmt.Fprintf(os.Stderr, "%s is required via -key or environment\n", envKey)
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", os.Getenv("LOG_LEVEL")).With().Str("cmd", "apikey").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, &logger))
	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "prepare schema: %v\n", err)
		os.Exit(1)
	}
	if err := store.Set(ctx, provider, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s api key: %v\n", provider, err)
		os.Exit(1)
	}

	fmt.Printf("%s stored successfully\n", envKey)
}
