package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/PabloGalante/twogether/internal/adapters/http"
	"github.com/PabloGalante/twogether/internal/adapters/llm"
	"github.com/PabloGalante/twogether/internal/adapters/notify"
	firestorestore "github.com/PabloGalante/twogether/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/twogether/internal/adapters/storage/memory"
	mongostore "github.com/PabloGalante/twogether/internal/adapters/storage/mongo"
	pgstore "github.com/PabloGalante/twogether/internal/adapters/storage/postgres"
	sqlitestore "github.com/PabloGalante/twogether/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/twogether/internal/app/genschema"
	"github.com/PabloGalante/twogether/internal/app/icebreaker"
	"github.com/PabloGalante/twogether/internal/app/ideas"
	"github.com/PabloGalante/twogether/internal/app/negotiation"
	"github.com/PabloGalante/twogether/internal/app/scheduler"
	"github.com/PabloGalante/twogether/internal/config"
	"github.com/PabloGalante/twogether/internal/domain"
	"github.com/PabloGalante/twogether/internal/observability"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownGrace = 15 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "twogether-api",
		Short:         "Twogether date negotiation API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

// stores holds both ports; the database backends implement them with one value.
type stores struct {
	sessions domain.SessionStore
	games    domain.GameStore
	close    func() error
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	switch cfg.StorageBackend {
	case config.BackendFirestore:
		log.Info("using firestore storage", "project", cfg.GCPProjectID)
		s, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, fmt.Errorf("firestore: %w", err)
		}
		return &stores{sessions: s, games: s, close: s.Close}, nil

	case config.BackendMongo:
		log.Info("using mongo storage", "database", cfg.MongoDatabase)
		connectCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		defer cancel()
		s, err := mongostore.NewStore(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		return &stores{sessions: s, games: s, close: s.Close}, nil

	case config.BackendPostgres:
		log.Info("using postgres storage")
		s, err := pgstore.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return &stores{sessions: s, games: s, close: s.Close}, nil

	case config.BackendSQLite:
		log.Info("using sqlite storage", "path", cfg.SQLitePath)
		s, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return &stores{sessions: s, games: s, close: s.Close}, nil

	default:
		log.Info("using in-memory storage")
		sessions, games := memstore.NewSessionStore(), memstore.NewGameStore()
		return &stores{
			sessions: sessions,
			games:    games,
			close:    func() error { return errors.Join(sessions.Close(), games.Close()) },
		}, nil
	}
}

func newLLM(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.LLMClient, error) {
	if cfg.UseMockLLM {
		log.Info("using mock LLM client")
		return llm.NewMockLLM(), nil
	}
	log.Info("using Vertex LLM client", "model", cfg.ModelName, "location", cfg.GCPLocation)
	return llm.NewVertexClient(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.ModelName)
}

func newNotifier(cfg *config.Config, log *slog.Logger) (domain.Notifier, *notify.Hub, error) {
	var (
		sinks []domain.Notifier
		hub   *notify.Hub
	)
	for _, name := range cfg.NotifySinks {
		switch name {
		case config.SinkLog:
			sinks = append(sinks, notify.NewLog(log))
		case config.SinkTelegram:
			tg, err := notify.NewTelegram(cfg.TelegramToken)
			if err != nil {
				return nil, nil, fmt.Errorf("telegram: %w", err)
			}
			sinks = append(sinks, tg)
		case config.SinkWebSocket:
			hub = notify.NewHub()
			sinks = append(sinks, hub)
		}
	}
	return notify.NewFanout(sinks...), hub, nil
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := observability.Init(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newLLM(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Warn("closing stores", "error", err)
		}
	}()

	notifier, hub, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}

	validator, err := genschema.New()
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	sched := scheduler.New()

	games := icebreaker.NewService(st.sessions, st.games,
		icebreaker.NewQuizGenerator(client, validator, cfg.GeneratorTimeout),
		notifier, icebreaker.Options{NotifyTimeout: cfg.NotifyTimeout})

	sessions := negotiation.NewService(st.sessions,
		ideas.NewGenerator(client, validator, cfg.GeneratorTimeout),
		notifier, sched, games, negotiation.Options{
			IcebreakerDelay: cfg.IcebreakerDelay,
			NotifyTimeout:   cfg.NotifyTimeout,
		})

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: httpadapter.NewServer(httpadapter.Deps{
			Sessions:  sessions,
			Games:     games,
			Hub:       hub,
			JWTSecret: cfg.JWTSecret,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("twogether API listening", "port", cfg.Port, "version", version,
			"storage", cfg.StorageBackend, "auth", cfg.AuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if n := sched.Pending(); n > 0 {
		log.Warn("dropping pending icebreaker tasks", "count", n)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
	}
	return errors.Join(errs...)
}
