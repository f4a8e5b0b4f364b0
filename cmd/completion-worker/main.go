package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

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

const jobTimeout = 2 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Env, cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("completion-worker failed")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	completionSpec := cfg.CompletionSchedule
	if completionSpec == "" {
		completionSpec = "@every " + cfg.WorkerInterval.String()
	}
	log.Info().
		Str("env", cfg.Env).
		Str("completion_schedule", completionSpec).
		Str("reminder_schedule", cfg.ReminderSchedule).
		Msg("completion-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns)
	cancelPg()
	if err != nil {
		return fmt.Errorf("postgres connection: %w", err)
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	repo := booking.NewPgRepository(pgPool)
	notifier, err := reminderNotifier(cfg, patient.NewPgRepository(pgPool), log)
	if err != nil {
		return err
	}

	cabinet := settings.NewService(settings.NewPgRepository(pgPool), cfg.SettingsDefaults(), log)

	slots := availability.NewService(availability.NewPgRepository(pgPool), repo, availability.Options{
		DefaultSlotDuration: cfg.DefaultSlotDuration,
		Settings:            cabinet,
	}, log)

	// The worker never creates or moves bookings, so a process-local lock is enough.
	svc := booking.NewService(repo, redisclient.NewLocalLocker(), slots, notifier, booking.Options{
		Cutoff:             cfg.ModificationCutoff,
		Location:           cfg.Timezone,
		ReminderDaysBefore: cfg.ReminderDaysBefore,
		Settings:           cabinet,
	}, log)

	cl := cronLogger{log: log.With().Str("component", "cron").Logger()}
	c := cron.New(
		cron.WithLocation(cfg.Timezone),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := c.AddFunc(completionSpec, func() { completeOnce(rootCtx, svc, log) }); err != nil {
		return fmt.Errorf("invalid completion schedule %q: %w", completionSpec, err)
	}
	// Reminders can be switched on from the admin settings at any time, so
	// the job is always scheduled and checks the settings on each run.
	if cfg.ReminderSchedule != "" {
		if _, err := c.AddFunc(cfg.ReminderSchedule, func() { remindOnce(rootCtx, svc, log) }); err != nil {
			return fmt.Errorf("invalid reminder schedule %q: %w", cfg.ReminderSchedule, err)
		}
	}

	// Run once at startup
	completeOnce(rootCtx, svc, log)

	c.Start()
	<-rootCtx.Done()

	log.Info().Msg("shutdown signal received, waiting for running jobs")
	<-c.Stop().Done()
	log.Info().Msg("completion-worker stopped")
	return nil
}

func completeOnce(ctx context.Context, svc *booking.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := svc.CompletePastBookings(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("completion run failed")
		return
	}
	log.Info().Int64("completed", n).Dur("took", time.Since(start)).Msg("completion run complete")
}

func remindOnce(ctx context.Context, svc *booking.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := svc.SendReminders(runCtx)
	if err != nil {
		log.Error().Err(err).Int("sent", n).Msg("reminder run failed")
		return
	}
	log.Info().Int("sent", n).Dur("took", time.Since(start)).Msg("reminder run complete")
}

// reminderNotifier only needs the patient-facing channel.
func reminderNotifier(cfg config.Config, patients *patient.PgRepository, log zerolog.Logger) (booking.Notifier, error) {
	if !cfg.MailEnabled() {
		log.Warn().Msg("mail is not configured, reminders are logged only")
		return booking.LogNotifier{Log: log}, nil
	}
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
	return mailer, nil
}

// cronLogger routes cron's internal logging to zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
