package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	RescheduleRatio float64
	StatusRatio     float64
	ReadRatio       float64
	PatientLimit    int
	DoctorLimit     int
	HorizonDays     int
	PostgresDSN     string
	Location        *time.Location
}

// DoctorAgenda is what the simulator needs to aim bookings at working hours.
type DoctorAgenda struct {
	ID        uuid.UUID
	Schedules map[time.Weekday]appointment.WeeklySchedule
}

type DataPool struct {
	Patients     []uuid.UUID
	Doctors      []DoctorAgenda
	mu           sync.RWMutex
	appointments []uuid.UUID // Thread-safe list of created appointment IDs
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

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

type Metrics struct {
	Booking       OperationMetrics
	Reschedule    OperationMetrics
	StatusChange  OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
	Slots         OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	actor   uuid.UUID
}

func main() {
	cfg := loadConfig()
	logging.Init("simulate", "dev", getEnv("LOG_LEVEL", "info"))

	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("reschedule", cfg.RescheduleRatio).
		Float64("status", cfg.StatusRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	// Load data from Postgres
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, "simulate")
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}

	log.Info().Int("patients", len(dataPool.Patients)).Int("doctors", len(dataPool.Doctors)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		actor: uuid.New(),
	}

	sim.Run()
	sim.PrintReport()

	overlaps, err := countOverlaps(ctx, pgPool)
	if err != nil {
		log.Fatal().Err(err).Msg("verify agenda")
	}
	if overlaps > 0 {
		log.Fatal().Int("overlapping_pairs", overlaps).Msg("double booking detected")
	}
	log.Info().Msg("no overlapping active appointments")
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load base config")
	}

	cfg := SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.4),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.15),
		StatusRatio:     getFloat("SIM_STATUS_RATIO", 0.15),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.3),
		PatientLimit:    getInt("SIM_PATIENT_LIMIT", 4000),
		DoctorLimit:     getInt("SIM_DOCTOR_LIMIT", 10),
		HorizonDays:     getInt("SIM_HORIZON_DAYS", 5),
		PostgresDSN:     baseCfg.PostgresDSN,
		Location:        baseCfg.ClinicLocation,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.RescheduleRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.RescheduleRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.HorizonDays <= 0 {
		return fmt.Errorf("SIM_HORIZON_DAYS must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	dataPool.Patients, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	// A small set of doctors keeps contention high.
	rows, err = pool.Query(ctx, `
		SELECT s.doctor_id, s.weekday, s.start_time::text, s.end_time::text, s.slot_duration_min
		FROM doctor_schedules s
		WHERE s.doctor_id IN (
			SELECT DISTINCT doctor_id FROM doctor_schedules ORDER BY doctor_id LIMIT $1
		)
	`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	defer rows.Close()

	byDoctor := make(map[uuid.UUID]*DoctorAgenda)
	for rows.Next() {
		var (
			doctorID         uuid.UUID
			weekday, slotMin int16
			start, end       string
		)
		if err := rows.Scan(&doctorID, &weekday, &start, &end, &slotMin); err != nil {
			return nil, err
		}
		startTOD, err := appointment.ParseTimeOfDay(start)
		if err != nil {
			return nil, err
		}
		endTOD, err := appointment.ParseTimeOfDay(end)
		if err != nil {
			return nil, err
		}

		agenda, ok := byDoctor[doctorID]
		if !ok {
			agenda = &DoctorAgenda{ID: doctorID, Schedules: make(map[time.Weekday]appointment.WeeklySchedule)}
			byDoctor[doctorID] = agenda
		}
		agenda.Schedules[time.Weekday(weekday)] = appointment.WeeklySchedule{
			DoctorID:        doctorID,
			Weekday:         time.Weekday(weekday),
			StartTime:       startTOD,
			EndTime:         endTOD,
			SlotDurationMin: int(slotMin),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, agenda := range byDoctor {
		dataPool.Doctors = append(dataPool.Doctors, *agenda)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors with weekly schedules loaded")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	c := s.config

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < c.BookingRatio:
				s.doBooking(ctx, rng)
			case r < c.BookingRatio+c.RescheduleRatio:
				s.doReschedule(ctx, rng)
			case r < c.BookingRatio+c.RescheduleRatio+c.StatusRatio:
				s.doStatusChange(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListByPatient(ctx, rng)
				case 2:
					s.doSlots(ctx, rng)
				}
			}
		}
	}
}

// randomInterval picks a day in the horizon the doctor works and a start inside
// the window. Starts are shifted by up to half a slot so candidates partially
// overlap each other.
func (s *Simulator) randomInterval(rng *rand.Rand, agenda DoctorAgenda) (time.Time, time.Time, bool) {
	loc := s.config.Location
	today := time.Now().In(loc)

	for attempt := 0; attempt < 7; attempt++ {
		day := today.AddDate(0, 0, 1+rng.Intn(s.config.HorizonDays))
		ws, ok := agenda.Schedules[day.Weekday()]
		if !ok {
			continue
		}
		slots := appointment.GenerateSlots(&ws, day, loc, nil)
		if len(slots) == 0 {
			continue
		}
		slot := slots[rng.Intn(len(slots))]
		shift := time.Duration(rng.Intn(ws.SlotDurationMin/2+1)) * time.Minute
		return slot.Start.Add(shift), slot.End.Add(shift), true
	}
	return time.Time{}, time.Time{}, false
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	agenda := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	start, end, ok := s.randomInterval(rng, agenda)
	if !ok {
		return
	}

	reqBody := map[string]any{
		"doctor_id":  agenda.ID.String(),
		"patient_id": s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
		"start_at":   start,
		"end_at":     end,
	}

	began := time.Now()
	status, body, err := s.send(ctx, http.MethodPost, "/appointments", reqBody)
	latency := time.Since(began)

	success := err == nil && status == http.StatusCreated
	if success {
		var apptResp struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(body, &apptResp) == nil && apptResp.ID != uuid.Nil {
			s.pool.AddAppointment(apptResp.ID)
		}
	}

	s.metrics.Booking.Record(latency, success, err == nil && status == http.StatusConflict)
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	// The target doctor is unknown here; any agenda gives a plausible interval.
	agenda := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	start, end, ok := s.randomInterval(rng, agenda)
	if !ok {
		return
	}

	began := time.Now()
	status, _, err := s.send(ctx, http.MethodPost, "/appointments/"+apptID.String()+"/reschedule", map[string]any{
		"start_at": start,
		"end_at":   end,
	})
	s.metrics.Reschedule.Record(time.Since(began), err == nil && status == http.StatusOK, err == nil && status == http.StatusConflict)
}

func (s *Simulator) doStatusChange(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	targets := []appointment.AppointmentStatus{
		appointment.StatusConfirmed,
		appointment.StatusConfirmed,
		appointment.StatusAttended,
		appointment.StatusCancelled,
	}
	to := targets[rng.Intn(len(targets))]

	began := time.Now()
	status, _, err := s.send(ctx, http.MethodPatch, "/appointments/"+apptID.String()+"/status", map[string]any{
		"status": to,
	})
	s.metrics.StatusChange.Record(time.Since(began), err == nil && status == http.StatusOK, err == nil && status == http.StatusConflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	began := time.Now()
	status, _, err := s.send(ctx, http.MethodGet, "/appointments/"+apptID.String(), nil)
	s.metrics.ReadByID.Record(time.Since(began), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	began := time.Now()
	status, _, err := s.send(ctx, http.MethodGet, "/appointments?patient_id="+patientID.String()+"&limit=20&offset=0", nil)
	s.metrics.ListByPatient.Record(time.Since(began), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	agenda := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	day := time.Now().In(s.config.Location).AddDate(0, 0, 1+rng.Intn(s.config.HorizonDays))

	began := time.Now()
	status, _, err := s.send(ctx, http.MethodGet,
		fmt.Sprintf("/doctors/%s/slots?date=%s&only_available=true", agenda.ID, day.Format("2006-01-02")), nil)
	s.metrics.Slots.Record(time.Since(began), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) send(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return 0, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", s.actor.String())
	req.Header.Set("X-User-Role", string(appointment.RoleAdmin))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, out.Bytes(), nil
}

// countOverlaps counts pairs of active appointments of the same doctor whose
// intervals overlap. Anything above zero is a double booking.
func countOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b ON a.doctor_id = b.doctor_id AND a.id < b.id
		WHERE a.status <> 'cancelled' AND b.status <> 'cancelled'
		  AND a.start_at < b.end_at AND b.start_at < a.end_at
	`).Scan(&n)
	return n, err
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Status change", &s.metrics.StatusChange)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
	printOperationReport("Available slots", &s.metrics.Slots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

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

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}
