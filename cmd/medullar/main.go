package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/af-corp/medullar-gateway/internal/config"
	"github.com/af-corp/medullar-gateway/internal/credentials"
	"github.com/af-corp/medullar-gateway/internal/filter"
	"github.com/af-corp/medullar-gateway/internal/filter/secrets"
	"github.com/af-corp/medullar-gateway/internal/medullar"
	"github.com/af-corp/medullar-gateway/internal/node"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("warning: .env could not be loaded: %v", err)
	}

	op := flag.String("op", node.OpListSpace, "operation: list-space, create-new-space, rename-space, delete-space, ask-space, add-record")
	space := flag.String("space", "", "space ID")
	spaceName := flag.String("space-name", "", "space name for create/rename")
	chat := flag.String("chat", "", "chat ID for ask-space (a new chat is created when empty)")
	mode := flag.String("mode", medullar.ModeSingleAgent, "chat mode for ask-space")
	deep := flag.Bool("deep", false, "enable deep analysis for ask-space")
	message := flag.String("message", "", "message for ask-space")
	source := flag.String("source", medullar.SourceText, "record source type: text, url, image, file")
	content := flag.String("content", "", "record content (source text)")
	recordURL := flag.String("url", "", "record URL (source url)")
	baseURL := flag.String("base-url", envOrDefault("MEDULLAR_BASE_URL", medullar.DefaultBaseURL), "Medullar API base URL")
	apiKey := flag.String("api-key", os.Getenv("MEDULLAR_API_KEY"), "Medullar API key (default $MEDULLAR_API_KEY)")
	test := flag.Bool("test", false, "only verify the API key")
	allowSecrets := flag.Bool("allow-secrets", false, "skip the secret scan on message, content and url")
	verbose := flag.Bool("v", false, "log upstream requests")
	flag.Parse()

	if *apiKey == "" {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nerror: -api-key or MEDULLAR_API_KEY is required")
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mcfg := config.DefaultConfig().Medullar
	mcfg.BaseURL = *baseURL
	transport := credentials.NewTransport(credentials.NewHTTPClient(mcfg), credentials.Credential{APIKey: *apiKey}, nil)
	client := medullar.NewClient(mcfg.BaseURL, transport, medullar.WithLogger(logger))

	if *test {
		if err := client.VerifyCredential(ctx); err != nil {
			fail(err)
		}
		fmt.Println("credential OK")
		return
	}

	params := node.NewMapParameters(map[string]any{
		"operation":    *op,
		"spaceId":      *space,
		"spaceName":    *spaceName,
		"chatId":       *chat,
		"chatMode":     *mode,
		"deepAnalysis": *deep,
		"message":      *message,
		"sourceType":   *source,
		"content":      *content,
		"url":          *recordURL,
	}, nil)

	filters := config.DefaultConfig().Filters
	filters.Secrets.Enabled = !*allowSecrets
	scanner := secrets.NewScanner(func() config.SecretsFilterConfig { return filters.Secrets })

	ex := node.NewExecutor(client,
		node.WithLogger(logger),
		node.WithFilters(filter.NewChain(scanner)),
	)
	items, err := ex.Execute(ctx, node.Input{
		RequestID: "cli_" + uuid.NewString(),
		Resource:  node.ResourceSpace,
		Operation: *op,
		Params:    params,
	})
	if err != nil {
		fail(err)
	}

	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		out = append(out, it.JSON)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("failed to write output: %v", err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	if apiErr, ok := medullar.AsAPIError(err); ok && len(apiErr.Payload) > 0 {
		fmt.Fprintf(os.Stderr, "upstream response: %s\n", apiErr.Payload)
	}
	os.Exit(1)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
