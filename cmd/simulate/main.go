package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/therapy-booking/internal/auth"
	"github.com/hackgods/therapy-booking/internal/availability"
	"github.com/hackgods/therapy-booking/internal/booking"
	"github.com/hackgods/therapy-booking/internal/calendar"
	"github.com/hackgods/therapy-booking/internal/config"
	"github.com/hackgods/therapy-booking/internal/db"
	"github.com/hackgods/therapy-booking/internal/logging"
	"github.com/hackgods/therapy-booking/internal/patient"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	ReadRatio    float64
	PatientLimit int
	// HotSlots limits booking attempts to the first N free slots so that
	// workers contend for the same (date, start) pairs.
	HotSlots  int
	RangeDays int
}

// DataPool holds the tokens and targets shared by every worker.
type DataPool struct {
	PatientTokens []string
	AdminToken    string
	Slots         []availability.Slot

	mu       sync.RWMutex
	bookings map[uuid.UUID]string // booking id -> owner token
}

func (dp *DataPool) AddBooking(id uuid.UUID, token string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings[id] = token
}

func (dp *DataPool) TakeBooking() (uuid.UUID, string, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	for id, token := range dp.bookings {
		delete(dp.bookings, id)
		return id, token, true
	}
	return uuid.Nil, "", false
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, pct int) int {
	idx := n * pct / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking OperationMetrics
	Cancel  OperationMetrics
	ListMy  OperationMetrics
	Slots   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(baseCfg.Env, baseCfg.LogLevel)

	cfg := loadConfig()
	if err := validateConfig(cfg, baseCfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("hot_slots", cfg.HotSlots).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	sim.pool, err = sim.loadDataPool(ctx, baseCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	log.Info().Int("patients", len(sim.pool.PatientTokens)).Int("slots", len(sim.pool.Slots)).Msg("data pool loaded")

	sim.Run()
	sim.PrintReport()

	if err := sim.CheckNoDoubleBooking(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("invariant violated")
	}
	log.Info().Msg("no slot holds more than one live booking")
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 20),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.6),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 200),
		HotSlots:     getInt("SIM_HOT_SLOTS", 10),
		RangeDays:    getInt("SIM_RANGE_DAYS", 14),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig, base config.Config) error {
	if base.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required to mint simulation tokens")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.HotSlots <= 0 {
		return fmt.Errorf("SIM_HOT_SLOTS must be > 0")
	}
	return nil
}

// loadDataPool mints tokens for seeded patients and fetches free slots
// through the API, so the run sees the same schedule the server does.
func (s *Simulator) loadDataPool(ctx context.Context, base config.Config) (*DataPool, error) {
	pgPool, err := db.ConnectPostgres(ctx, base.PostgresDSN, base.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	defer pgPool.Close()

	patients, err := patient.NewPgRepository(pgPool).List(ctx, s.config.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if len(patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}

	authn, err := auth.NewAuthenticator(auth.Config{Secret: []byte(base.JWTSecret), Issuer: base.JWTIssuer})
	if err != nil {
		return nil, err
	}

	dp := &DataPool{bookings: make(map[uuid.UUID]string)}
	for _, p := range patients {
		token, err := authn.Issue(booking.Caller{ID: p.ID, Role: booking.RolePatient}, base.TokenTTL)
		if err != nil {
			return nil, err
		}
		dp.PatientTokens = append(dp.PatientTokens, token)
	}
	if dp.AdminToken, err = authn.Issue(booking.Caller{ID: uuid.New(), Role: booking.RoleAdmin}, base.TokenTTL); err != nil {
		return nil, err
	}

	// Start the day after tomorrow so the modification cutoff never applies.
	from := calendar.DateOf(time.Now().In(base.Timezone)).AddDays(2)
	var slots SlotsPayload
	status, err := s.call(ctx, http.MethodGet, dp.PatientTokens[0],
		fmt.Sprintf("/availability/slots?start_date=%s&end_date=%s", from, from.AddDays(s.config.RangeDays)), nil, &slots)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("load slots: unexpected status %d", status)
	}
	if len(slots.Slots) == 0 {
		return nil, fmt.Errorf("no free slots in range, seed a schedule first")
	}

	dp.Slots = slots.Slots[:min(len(slots.Slots), s.config.HotSlots)]
	return dp, nil
}

type SlotsPayload struct {
	Slots []availability.Slot `json:"slots"`
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		case rng.Intn(2) == 0:
			s.doListMine(ctx, rng)
		default:
			s.doListSlots(ctx, rng)
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	token := s.pool.PatientTokens[rng.Intn(len(s.pool.PatientTokens))]

	body := map[string]string{
		"date":       slot.Date.String(),
		"start_time": slot.StartTime.String(),
		"end_time":   slot.EndTime.String(),
	}

	start := time.Now()
	var created booking.Booking
	status, err := s.call(ctx, http.MethodPost, token, "/bookings", body, &created)
	if err != nil {
		return
	}
	s.metrics.Booking.Record(time.Since(start), status)

	if status == http.StatusCreated {
		s.pool.AddBooking(created.ID, token)
	}
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, token, ok := s.pool.TakeBooking()
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, token, "/bookings/"+id.String()+"/cancel",
		map[string]string{"reason": "simulation"}, nil)
	if err != nil {
		return
	}
	s.metrics.Cancel.Record(time.Since(start), status)
}

func (s *Simulator) doListMine(ctx context.Context, rng *rand.Rand) {
	token := s.pool.PatientTokens[rng.Intn(len(s.pool.PatientTokens))]

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, token, "/bookings/me", nil, nil)
	if err != nil {
		return
	}
	s.metrics.ListMy.Record(time.Since(start), status)
}

func (s *Simulator) doListSlots(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	token := s.pool.PatientTokens[rng.Intn(len(s.pool.PatientTokens))]

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, token,
		fmt.Sprintf("/availability/slots?start_date=%s&end_date=%s", slot.Date, slot.Date.AddDays(7)), nil, nil)
	if err != nil {
		return
	}
	s.metrics.Slots.Record(time.Since(start), status)
}

// CheckNoDoubleBooking lists every live booking through the admin API and
// fails if two of them share a (date, start) pair.
func (s *Simulator) CheckNoDoubleBooking(ctx context.Context) error {
	var list struct {
		Bookings []booking.Booking `json:"bookings"`
	}
	status, err := s.call(ctx, http.MethodGet, s.pool.AdminToken, "/admin/bookings?status=confirmed", nil, &list)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("list bookings: unexpected status %d", status)
	}

	seen := make(map[string]uuid.UUID, len(list.Bookings))
	for _, b := range list.Bookings {
		key := booking.SlotKey(b.Date, b.StartTime)
		if other, dup := seen[key]; dup {
			return fmt.Errorf("slot %s held by %s and %s", key, other, b.ID)
		}
		seen[key] = b.ID
	}
	return nil
}

// call sends a JSON request and decodes the response into out when the
// status is 2xx. Transport errors during shutdown are not recorded.
func (s *Simulator) call(ctx context.Context, method, token, path string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Contended slots: %d\n", len(s.pool.Slots))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("List my bookings", &s.metrics.ListMy)
	printOperationReport("List slots", &s.metrics.Slots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
