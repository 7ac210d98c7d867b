// Command simulate hammers the booking API with concurrent, deliberately
// colliding requests and reports how many were accepted versus rejected as
// conflicts. With correct locking, each contested window is won exactly
// once; any double-booking shows up as too many successes.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type simConfig struct {
	APIBaseURL string
	Duration   time.Duration
	Workers    int
	Dentists   int
	Patients   int
}

type metrics struct {
	total     int64
	success   int64
	conflict  int64
	errors    int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (m *metrics) record(latency time.Duration, status int) {
	atomic.AddInt64(&m.total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&m.success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&m.conflict, 1)
	default:
		atomic.AddInt64(&m.errors, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *metrics) percentile(p int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "simulate").Logger()

	cfg := simConfig{
		APIBaseURL: envOr("API_BASE_URL", "http://localhost:8080"),
		Duration:   30 * time.Second,
		Workers:    16,
		Dentists:   4,
		Patients:   64,
	}
	if v := os.Getenv("SIM_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Duration = d
		}
	}

	log.Info().
		Str("api", cfg.APIBaseURL).
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Msg("simulation starting")

	// A small contested universe: few dentists and clinics, all bookings on
	// the same day, so workers constantly race for the same windows.
	dentists := randomIDs(cfg.Dentists)
	clinics := randomIDs(2)
	patients := randomIDs(cfg.Patients)
	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var m metrics
	var wg sync.WaitGroup
	client := &http.Client{Timeout: 10 * time.Second}

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))

			for ctx.Err() == nil {
				bookRandom(ctx, client, cfg.APIBaseURL, rng, dentists, clinics, patients, date, &m)
			}
		}(int64(w) + time.Now().UnixNano())
	}

	wg.Wait()

	log.Info().
		Int64("total", atomic.LoadInt64(&m.total)).
		Int64("success", atomic.LoadInt64(&m.success)).
		Int64("conflict", atomic.LoadInt64(&m.conflict)).
		Int64("errors", atomic.LoadInt64(&m.errors)).
		Dur("p50", m.percentile(50)).
		Dur("p95", m.percentile(95)).
		Msg("simulation complete")
}

func bookRandom(ctx context.Context, client *http.Client, base string, rng *rand.Rand, dentists, clinics, patients []uuid.UUID, date string, m *metrics) {
	// Half-hour grid between 08:00 and 18:00.
	startMin := 8*60 + 30*rng.Intn(20)
	body := map[string]any{
		"patient_id":   patients[rng.Intn(len(patients))].String(),
		"dentist_id":   dentists[rng.Intn(len(dentists))].String(),
		"clinic_id":    clinics[rng.Intn(len(clinics))].String(),
		"date":         date,
		"start_time":   fmt.Sprintf("%02d:%02d", startMin/60, startMin%60),
		"patient_name": "Load Test",
		"dentist_name": "Load Test",
		"services": []map[string]any{
			{"code": "EXAM", "name": "Routine examination", "duration": 30, "cost": 6500},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/appointments", bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			m.record(time.Since(start), 0)
		}
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	m.record(time.Since(start), resp.StatusCode)
}

func randomIDs(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
