// Command queryon runs the conversational assistant platform: the HTTP
// chat/webhook surface, the classification cascade, the rule and mode
// engines, and the channel adapters, all wired around one Store. Grounded
// on cmd/divinesense/main.go's cobra+viper command tree and startup
// sequence (load config, open the store, migrate, build the server, wait
// for a termination signal).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vidinsight-tech/queryon/internal/availability"
	"github.com/vidinsight-tech/queryon/internal/channels/telegram"
	"github.com/vidinsight-tech/queryon/internal/channels/whatsapp"
	"github.com/vidinsight-tech/queryon/internal/classify"
	"github.com/vidinsight-tech/queryon/internal/config"
	"github.com/vidinsight-tech/queryon/internal/handlers"
	"github.com/vidinsight-tech/queryon/internal/llmclient"
	"github.com/vidinsight-tech/queryon/internal/model"
	"github.com/vidinsight-tech/queryon/internal/orchestrator"
	"github.com/vidinsight-tech/queryon/internal/rag"
	"github.com/vidinsight-tech/queryon/internal/rag/ragstub"
	"github.com/vidinsight-tech/queryon/internal/ruleengine"
	"github.com/vidinsight-tech/queryon/internal/store"
	"github.com/vidinsight-tech/queryon/internal/store/postgres"
	"github.com/vidinsight-tech/queryon/internal/store/sqlite"
	"github.com/vidinsight-tech/queryon/server/httpapi"
)

var rootCmd = &cobra.Command{
	Use:   "queryon",
	Short: "A multi-channel conversational assistant for appointment and order intake.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			slog.Error("failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := cfg.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		st, ragService, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			printDatabaseError(err, cfg)
			slog.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		defer closeStore()

		orch, err := buildOrchestrator(ctx, cfg, st, ragService)
		if err != nil {
			slog.Error("failed to build orchestrator", "error", err)
			os.Exit(1)
		}

		var tgChannel *telegram.Channel
		if cfg.TelegramBotToken != "" {
			tgChannel, err = telegram.New(cfg.TelegramBotToken)
			if err != nil {
				slog.Error("failed to init telegram channel", "error", err)
				os.Exit(1)
			}
		}

		var waChannel *whatsapp.Channel
		if cfg.WhatsAppAccessToken != "" && cfg.WhatsAppPhoneNumberID != "" {
			waChannel = whatsapp.New(whatsapp.Config{
				AccessToken:   cfg.WhatsAppAccessToken,
				AppSecret:     cfg.WhatsAppAppSecret,
				VerifyToken:   cfg.WhatsAppVerifyToken,
				PhoneNumberID: cfg.WhatsAppPhoneNumberID,
			})
		}

		srv := httpapi.New(cfg, st, orch, tgChannel, waChannel)

		c := make(chan os.Signal, 1)
		signal.Notify(c, terminationSignals...)

		printGreetings(cfg)

		go func() {
			<-c
			_ = srv.Shutdown(ctx)
			cancel()
		}()

		if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped with error", "error", err)
			os.Exit(1)
		}
	},
}

// openStore picks the storage driver from the DATABASE_URL scheme, opens
// it, ensures its schema, and — for postgres only — builds a RAG service
// over the same connection pool. ragService is nil when the deployment has
// no postgres/pgvector backing, matching rag.Service's "no knowledge base
// available" case.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, rag.Service, func(), error) {
	if strings.HasPrefix(cfg.DatabaseURL, "postgres://") || strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
		driver, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, func() {}, fmt.Errorf("open postgres: %w", err)
		}
		if err := driver.EnsureSchema(ctx); err != nil {
			return nil, nil, func() {}, fmt.Errorf("migrate postgres: %w", err)
		}

		embedClient, err := llmclient.NewEmbeddingClient(llmConfig(cfg))
		if err != nil {
			return nil, nil, func() {}, fmt.Errorf("init embedding client: %w", err)
		}
		chatClient, err := llmclient.NewClient(llmConfig(cfg))
		if err != nil {
			return nil, nil, func() {}, fmt.Errorf("init chat client: %w", err)
		}
		ragService := ragstub.New(driver.DB(), embedClient, chatClient)
		if err := ragService.EnsureSchema(ctx, cfg.LLMDimensions); err != nil {
			return nil, nil, func() {}, fmt.Errorf("migrate rag schema: %w", err)
		}

		return driver.NewStore(), ragService, func() { _ = driver.Close() }, nil
	}

	driver, err := sqlite.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, func() {}, fmt.Errorf("open sqlite: %w", err)
	}
	if err := driver.EnsureSchema(ctx); err != nil {
		return nil, nil, func() {}, fmt.Errorf("migrate sqlite: %w", err)
	}
	return driver.NewStore(), nil, func() { _ = driver.Close() }, nil
}

func llmConfig(cfg *config.Config) llmclient.Config {
	return llmclient.Config{
		Provider:       cfg.LLMProvider,
		APIKey:         cfg.LLMAPIKey,
		BaseURL:        cfg.LLMBaseURL,
		ChatModel:      cfg.LLMModel,
		EmbeddingModel: cfg.LLMEmbeddingModel,
		Dimensions:     cfg.LLMDimensions,
		TimeoutSeconds: cfg.LLMTimeoutSeconds,
	}
}

// buildOrchestrator wires the rule engine, classification cascade, and
// every intent handler around the given store.
func buildOrchestrator(ctx context.Context, cfg *config.Config, st *store.Store, ragService rag.Service) (*orchestrator.Orchestrator, error) {
	oc, err := st.Config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load orchestrator config: %w", err)
	}

	rules, err := st.Rules.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	engine := ruleengine.New(rules)

	chatClient, err := llmclient.NewClient(llmConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}

	cascade, err := buildCascade(ctx, cfg, engine, chatClient)
	if err != nil {
		return nil, fmt.Errorf("build classification cascade: %w", err)
	}

	avail := availability.NewService(st.CalendarResources, st.CalendarBlocks, nil)

	handlerMap := map[model.Intent]orchestrator.Handler{
		model.IntentRule:      handlers.NewRuleHandler(engine, chatClient, cfg.LLMTimeoutSeconds, oc.EmbeddingConfidenceThreshold),
		model.IntentTool:      handlers.NewToolHandler(handlers.NewToolRegistry()),
		model.IntentDirect:    handlers.NewDirectHandler(chatClient, cfg.LLMTimeoutSeconds),
		model.IntentCharacter: handlers.NewCharacterHandler(chatClient, st, avail, cfg.LLMTimeoutSeconds),
	}

	if ragService != nil {
		handlerMap[model.IntentRAG] = handlers.NewRAGHandler(ragService)
	} else if oc.WhenRAGUnavailable == model.RAGUnavailableAskUser {
		handlerMap[model.IntentRAG] = handlers.NewAskUserHandler()
	} else {
		handlerMap[model.IntentRAG] = handlers.NewDirectHandler(chatClient, cfg.LLMTimeoutSeconds)
	}

	return orchestrator.New(st, engine, cascade, handlerMap), nil
}

// buildCascade assembles the three-layer classifier. Layer 2 (embedding) is
// skipped, degrading to keyword + LLM only, if the prototype set fails to
// embed at startup (e.g. a transient provider error).
func buildCascade(ctx context.Context, cfg *config.Config, engine *ruleengine.Engine, chatClient *llmclient.Client) (*classify.Cascade, error) {
	keyword := classify.NewKeywordClassifier(engine.Keywords(), nil, nil)

	cascade := &classify.Cascade{
		Keyword:                      keyword,
		EmbeddingConfidenceThreshold: 0.75,
	}

	embedClient, err := llmclient.NewEmbeddingClient(llmConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("init embedding client: %w", err)
	}
	embedding, err := classify.NewEmbeddingClassifier(ctx, embedClient, classify.DefaultPrototypes)
	if err != nil {
		slog.Warn("queryon: embedding classifier unavailable, skipping layer 2", "error", err)
	} else {
		cascade.Embedding = embedding
	}

	cache := classify.NewCache(512, 0)
	timeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second
	cascade.LLM = classify.NewLLMClassifier(chatClient, cache, timeout, model.IntentDirect)

	return cascade, nil
}

func init() {
	v := viper.GetViper()
	config.BindFlags(v, func(key, flag string) {
		// v.GetString(key) at this point reflects any SetDefault value
		// BindFlags already applied for key (env binding happens after
		// this callback runs) — registering that as the flag's own
		// default keeps an unchanged flag from shadowing it with "".
		rootCmd.PersistentFlags().String(flag, v.GetString(key), "")
		_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
	})
}

func printGreetings(cfg *config.Config) {
	fmt.Println("queryon started successfully!")
	fmt.Printf("Mode: %s\n", cfg.Mode)
	addr := cfg.Addr
	if addr == "" {
		addr = fmt.Sprintf("localhost:%d", cfg.Port)
	}
	fmt.Printf("Listening on: %s\n", addr)
	if cfg.TelegramBotToken != "" {
		fmt.Println("Telegram channel: enabled")
	}
	if cfg.WhatsAppAccessToken != "" {
		fmt.Println("WhatsApp channel: enabled")
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

// printDatabaseError gives an operator actionable next steps for common
// connection failures, mirroring cmd/divinesense/main.go's troubleshooting
// output.
func printDatabaseError(err error, cfg *config.Config) {
	fmt.Fprintln(os.Stderr, "\nDatabase connection failed.")
	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host"):
		fmt.Fprintln(os.Stderr, "The database is not reachable. Check DATABASE_URL and that the server is running.")
	case strings.Contains(errMsg, "password authentication failed"):
		fmt.Fprintln(os.Stderr, "Authentication failed. Check the credentials in DATABASE_URL.")
	case strings.Contains(errMsg, "does not exist"):
		fmt.Fprintln(os.Stderr, "The target database does not exist yet. Create it before starting queryon.")
	default:
		fmt.Fprintln(os.Stderr, errMsg)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set. For local development, point it at a SQLite file path.")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
