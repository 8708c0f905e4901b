// Command verify dispatches a single generation with the configured
// credentials and prints the normalized result as JSON. It exits with
// status 1 when the generation fails.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/maauso/genspace-api/internal/bootstrap"
	"github.com/maauso/genspace-api/internal/config"
	"github.com/maauso/genspace-api/internal/generator"
)

func main() {
	ok, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if !ok {
		os.Exit(1)
	}
}

func run(args []string) (bool, error) {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	kind := fs.String("type", "image", "generation type: image or video")
	prompt := fs.String("prompt", "A small red cube on a white table, studio lighting", "prompt to send")
	model := fs.String("model", "", "model ID (default: configured default)")
	if err := fs.Parse(args); err != nil {
		return false, err
	}

	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return false, fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher, err := bootstrap.NewDispatcher(ctx, cfg, logger, nil)
	if err != nil {
		return false, err
	}

	req := generator.Request{
		Prompt:    *prompt,
		Modality:  generator.Modality(*kind),
		ModelID:   *model,
		OwnerID:   "verify",
		WithAudio: true,
	}

	logger.Info("dispatching verification request",
		slog.String("type", *kind),
		slog.String("model", *model),
	)
	res := dispatcher.Dispatch(ctx, req)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return false, fmt.Errorf("encode result: %w", err)
	}
	return res.Success, nil
}
