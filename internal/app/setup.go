package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"golang.org/x/time/rate"

	"github.com/procureflow/procureflow/internal/api"
	"github.com/procureflow/procureflow/internal/assistant"
	"github.com/procureflow/procureflow/internal/cart"
	"github.com/procureflow/procureflow/internal/catalog"
	"github.com/procureflow/procureflow/internal/chatstore"
	"github.com/procureflow/procureflow/internal/config"
	"github.com/procureflow/procureflow/internal/log"
	"github.com/procureflow/procureflow/internal/tools"
	"github.com/procureflow/procureflow/internal/transcribe"
)

// Setup creates and initializes the application.
func Setup(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	a.Logger = log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), JSON: cfg.LogJSON})

	g, err := provideGenkit(ctx, cfg, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Catalog = catalog.NewMemoryRepository(catalog.Seed())
	a.Cart = cart.New(cart.WithStateFile(cfg.CartStatePath()))

	store, err := chatstore.New(cfg.ChatDir(), a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating chat store: %w", err)
	}
	a.ChatStore = store

	kit, err := tools.NewKit(a.Catalog, a.Cart, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating tool kit: %w", err)
	}
	a.Tools = kit
	toolRefs, err := kit.Register(g)
	if err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	if cfg.APIKeyPresent() {
		agent, err := assistant.New(g, store, toolRefs, assistant.Config{
			Model:     cfg.QualifiedModel(),
			MaxTurns:  cfg.MaxTurns,
			RateLimit: rate.Limit(cfg.RateLimit),
			RateBurst: cfg.RateBurst,
		}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("creating assistant: %w", err)
		}
		a.Agent = agent
	} else {
		a.Logger.Warn("provider API key not set, chat endpoint disabled",
			"env", cfg.APIKeyEnvVar())
	}

	// Voice transcription always goes through the Whisper API, so it needs
	// the OpenAI key even when the chat provider is Gemini.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		transcriber, err := transcribe.New(key, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("creating transcriber: %w", err)
		}
		a.Transcriber = transcriber
	} else {
		a.Logger.Warn("OPENAI_API_KEY not set, transcription endpoint disabled")
	}

	server, err := api.NewServer(api.ServerConfig{
		Logger:         a.Logger,
		Catalog:        a.Catalog,
		ChatStore:      a.ChatStore,
		Agent:          a.Agent,
		Transcriber:    a.Transcriber,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		TrustProxy:     cfg.TrustProxy,
	})
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	a.Server = server

	return a, nil
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
// When the provider key is absent the runtime starts without a plugin so the
// rest of the application stays usable.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	if !cfg.APIKeyPresent() {
		g := genkit.Init(ctx)
		if g == nil {
			return nil, errors.New("initializing genkit")
		}
		return g, nil
	}

	var g *genkit.Genkit
	switch cfg.Provider {
	case config.ProviderGemini:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)

	default: // openai
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)
	}

	return g, nil
}
