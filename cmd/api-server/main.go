package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/therapy-booking/internal/api"
	"github.com/hackgods/therapy-booking/internal/auth"
	"github.com/hackgods/therapy-booking/internal/availability"
	"github.com/hackgods/therapy-booking/internal/booking"
	"github.com/hackgods/therapy-booking/internal/config"
	"github.com/hackgods/therapy-booking/internal/db"
	"github.com/hackgods/therapy-booking/internal/logging"
	"github.com/hackgods/therapy-booking/internal/notification"
	"github.com/hackgods/therapy-booking/internal/patient"
	redisclient "github.com/hackgods/therapy-booking/internal/redis"
	"github.com/hackgods/therapy-booking/internal/settings"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "api-server",
		Short: "Therapy booking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator, log zerolog.Logger) error {
				n, err := m.Up(ctx)
				if err != nil {
					return err
				}
				log.Info().Int("applied", n).Msg("migrations complete")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator, _ zerolog.Logger) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				for _, s := range statuses {
					applied := "pending"
					if s.AppliedAt != nil {
						applied = s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Printf("%03d  %-30s  %s\n", s.Version, s.Name, applied)
				}
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(ctx context.Context, fn func(ctx context.Context, m *db.Migrator, log zerolog.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	log := logging.New(cfg.Env, cfg.LogLevel)

	pool, err := connectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, db.Migrations()), log)
}

func connectPostgres(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("postgres connection: %w", err)
	}
	return pool, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	log := logging.New(cfg.Env, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("timezone", cfg.Timezone.String()).Msg("api-server starting up")

	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgPool, err := connectPostgres(rootCtx, cfg)
	if err != nil {
		return err
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("redis connection: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	bookingRepo := booking.NewPgRepository(pgPool)
	patients := patient.NewPgRepository(pgPool)
	cabinet := settings.NewService(settings.NewPgRepository(pgPool), cfg.SettingsDefaults(), log)

	slots := availability.NewService(availability.NewPgRepository(pgPool), bookingRepo, availability.Options{
		DefaultSlotDuration: cfg.DefaultSlotDuration,
		MaxRangeDays:        cfg.MaxSlotRangeDays,
		Settings:            cabinet,
	}, log)

	notifier, err := buildNotifier(cfg, patients, log)
	if err != nil {
		return err
	}

	bookings := booking.NewService(
		bookingRepo,
		redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait),
		slots,
		notifier,
		booking.Options{
			Cutoff:              cfg.ModificationCutoff,
			EnforceOfferedSlots: cfg.EnforceOfferedSlots,
			Location:            cfg.Timezone,
			ReminderDaysBefore:  cfg.ReminderDaysBefore,
			Settings:            cabinet,
		},
		log,
	)

	authenticator, err := auth.NewAuthenticator(auth.Config{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer})
	if err != nil {
		return err
	}

	redisPing := api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })

	srv := &http.Server{
		Addr: net.JoinHostPort("", cfg.HTTPPort),
		Handler: api.NewRouter(api.RouterConfig{
			Bookings:     bookings,
			Availability: slots,
			Patients:     patient.NewService(patients, log),
			Settings:     cabinet,
			Auth:         authenticator,
			Health:       api.NewHealthHandler(pgPool, redisPing, cfg.Env, version),
			Log:          log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return rootCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-rootCtx.Done():
	}

	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info().Msg("api-server stopped")
	return nil
}

// buildNotifier combines every configured channel. With none configured,
// notifications are only logged.
func buildNotifier(cfg config.Config, patients *patient.PgRepository, log zerolog.Logger) (booking.Notifier, error) {
	var fan notification.Fanout

	if cfg.MailEnabled() {
		mailer, err := notification.NewMailer(notification.MailConfig{
			APIURL:      cfg.MailAPIURL,
			APIKey:      cfg.MailAPIKey,
			SenderEmail: cfg.MailSender,
			SenderName:  cfg.MailSenderName,
			ClinicName:  cfg.ClinicName,
			Cutoff:      cfg.ModificationCutoff,
		}, patients, log)
		if err != nil {
			return nil, fmt.Errorf("mailer: %w", err)
		}
		fan = append(fan, mailer)
	}

	if cfg.TelegramToken != "" {
		tg, err := notification.NewTelegramNotifier(notification.TelegramConfig{
			Token:   cfg.TelegramToken,
			ChatIDs: cfg.TelegramChatIDs,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		fan = append(fan, tg)
	}

	if len(fan) == 0 {
		log.Warn().Msg("no notification channel configured, notifications are logged only")
		return booking.LogNotifier{Log: log}, nil
	}
	return fan, nil
}
