package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/therapy-booking/internal/availability"
	"github.com/hackgods/therapy-booking/internal/booking"
	"github.com/hackgods/therapy-booking/internal/calendar"
	"github.com/hackgods/therapy-booking/internal/config"
	"github.com/hackgods/therapy-booking/internal/db"
	"github.com/hackgods/therapy-booking/internal/logging"
	"github.com/hackgods/therapy-booking/internal/patient"
)

// weeklyGrid is the default opening schedule: mornings and afternoons,
// Monday to Friday, with a Saturday morning.
var weeklyGrid = []struct {
	day        time.Weekday
	start, end string
}{
	{time.Monday, "09:00", "12:00"}, {time.Monday, "14:00", "18:00"},
	{time.Tuesday, "09:00", "12:00"}, {time.Tuesday, "14:00", "18:00"},
	{time.Wednesday, "09:00", "12:00"},
	{time.Thursday, "09:00", "12:00"}, {time.Thursday, "14:00", "19:00"},
	{time.Friday, "09:00", "12:00"}, {time.Friday, "14:00", "17:00"},
	{time.Saturday, "09:00", "12:00"},
}

func main() {
	patients := flag.Int("patients", 200, "number of fake patients to create")
	slotMinutes := flag.Int("slot-duration", 0, "slot length in minutes (defaults to DEFAULT_SLOT_DURATION)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Env, cfg.LogLevel)
	log.Info().Msg("seed starting")

	if *slotMinutes <= 0 {
		*slotMinutes = cfg.DefaultSlotDuration
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if _, err := db.NewMigrator(pool, db.Migrations()).Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	avail := availability.NewService(availability.NewPgRepository(pool), booking.NewPgRepository(pool), availability.Options{
		DefaultSlotDuration: cfg.DefaultSlotDuration,
	}, log)

	if err := seedSchedule(ctx, avail, *slotMinutes, log); err != nil {
		log.Fatal().Err(err).Msg("seed schedule")
	}
	if err := seedPatients(ctx, patient.NewPgRepository(pool), *patients, log); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}

	log.Info().Msg("seed complete")
}

func seedSchedule(ctx context.Context, svc *availability.Service, slotMinutes int, log zerolog.Logger) error {
	existing, err := svc.ListAvailabilities(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Info().Int("windows", len(existing)).Msg("schedule already present, skipping")
		return nil
	}

	for _, w := range weeklyGrid {
		_, err := svc.CreateAvailability(ctx, availability.WeeklyAvailability{
			DayOfWeek:    w.day,
			StartTime:    calendar.MustParseClock(w.start),
			EndTime:      calendar.MustParseClock(w.end),
			SlotDuration: slotMinutes,
			IsActive:     true,
		})
		if err != nil {
			return fmt.Errorf("create %s %s-%s: %w", w.day, w.start, w.end, err)
		}
	}

	log.Info().Int("windows", len(weeklyGrid)).Int("slot_duration", slotMinutes).Msg("schedule seeded")
	return nil
}

func seedPatients(ctx context.Context, repo *patient.PgRepository, count int, log zerolog.Logger) error {
	log.Info().Int("count", count).Msg("seeding patients")

	faker := gofakeit.New(0)
	for i := 0; i < count; i++ {
		first, last := faker.FirstName(), faker.LastName()
		phone := faker.Phone()

		_, err := repo.Create(ctx, patient.Patient{
			Email:     fmt.Sprintf("%s.%s.%d@example.com", strings.ToLower(first), strings.ToLower(last), i),
			FirstName: first,
			LastName:  last,
			Phone:     &phone,
		})
		if err != nil {
			return err
		}

		if (i+1)%100 == 0 {
			log.Info().Int("done", i+1).Int("total", count).Msg("patients seeded")
		}
	}

	log.Info().Msg("patients seeded")
	return nil
}
