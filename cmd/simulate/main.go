package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/clinhub/scheduling-engine/internal/db"
)

// simulate drives the machine-to-machine surface under load: a worker pool
// mixes available-slots reads with cancellations and reports success /
// rate-limited / error counts plus latency percentiles per operation.

type SimConfig struct {
	APIBaseURL  string
	APIKey      string
	Duration    time.Duration
	Workers     int
	CancelRatio float64
	PostgresDSN string
}

type DataPool struct {
	Professionals []uuid.UUID
	Appointments  []uuid.UUID
	Patients      []uuid.UUID
}

type OperationMetrics struct {
	Total       int64
	Success     int64
	RateLimited int64
	Rejected    int64
	Error       int64
	Latencies   []time.Duration
	mu          sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status == http.StatusTooManyRequests:
		atomic.AddInt64(&om.RateLimited, 1)
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status >= 400 && status < 500:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))

	idx := func(pct int) int {
		i := len(latencies) * pct / 100
		if i >= len(latencies) {
			i = len(latencies) - 1
		}
		return i
	}
	return avg, latencies[idx(50)], latencies[idx(95)], latencies[len(latencies)-1]
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := loadSimConfig()
	log.Printf("simulate: base_url=%s workers=%d duration=%s cancel_ratio=%.2f",
		cfg.APIBaseURL, cfg.Workers, cfg.Duration, cfg.CancelRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := loadDataPool(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("pool: %d professionals, %d appointments", len(pool.Professionals), len(pool.Appointments))

	slotsMetrics := &OperationMetrics{}
	cancelMetrics := &OperationMetrics{}

	runCtx, stop := context.WithTimeout(context.Background(), cfg.Duration)
	defer stop()

	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for runCtx.Err() == nil {
				if rng.Float64() < cfg.CancelRatio && len(pool.Appointments) > 0 {
					doCancel(runCtx, client, cfg, pool, rng, cancelMetrics)
				} else {
					doAvailableSlots(runCtx, client, cfg, pool, rng, slotsMetrics)
				}
			}
		}(time.Now().UnixNano() + int64(i))
	}
	wg.Wait()

	report("available-slots", slotsMetrics)
	report("cancel-appointment", cancelMetrics)
}

func doAvailableSlots(ctx context.Context, client *http.Client, cfg SimConfig, pool *DataPool, rng *rand.Rand, m *OperationMetrics) {
	profID := pool.Professionals[rng.Intn(len(pool.Professionals))]
	start := time.Now().AddDate(0, 0, rng.Intn(14))
	end := start.AddDate(0, 0, rng.Intn(7))

	url := fmt.Sprintf("%s/v1/available-slots?professional_id=%s&start_date=%s&end_date=%s",
		cfg.APIBaseURL, profID, start.Format("2006-01-02"), end.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return
	}
	req.Header.Set("X-API-Key", cfg.APIKey)

	began := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			m.Record(time.Since(began), http.StatusInternalServerError)
		}
		return
	}
	resp.Body.Close()
	m.Record(time.Since(began), resp.StatusCode)
}

func doCancel(ctx context.Context, client *http.Client, cfg SimConfig, pool *DataPool, rng *rand.Rand, m *OperationMetrics) {
	apptID := pool.Appointments[rng.Intn(len(pool.Appointments))]

	body, _ := json.Marshal(map[string]any{
		"cancelled_by": "system",
		"reason":       "load simulation",
	})

	url := fmt.Sprintf("%s/v1/appointments/%s", cfg.APIBaseURL, apptID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("X-API-Key", cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	began := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			m.Record(time.Since(began), http.StatusInternalServerError)
		}
		return
	}
	resp.Body.Close()
	m.Record(time.Since(began), resp.StatusCode)
}

func loadDataPool(ctx context.Context, dsn string) (*DataPool, error) {
	pg, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer pg.Close()

	pool := &DataPool{}

	rows, err := pg.Query(ctx, `SELECT id FROM professionals WHERE active AND profile_complete LIMIT 500`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		pool.Professionals = append(pool.Professionals, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pg.Query(ctx, `SELECT id FROM appointments WHERE status = 'scheduled' LIMIT 2000`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		pool.Appointments = append(pool.Appointments, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(pool.Professionals) == 0 {
		return nil, fmt.Errorf("no active professionals found, run cmd/seed first")
	}
	return pool, nil
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  getenv("SIM_BASE_URL", "http://localhost:8080"),
		APIKey:      os.Getenv("API_KEY"),
		Duration:    30 * time.Second,
		Workers:     8,
		CancelRatio: 0.2,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
	if v := os.Getenv("SIM_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Duration = d
		}
	}
	if v := os.Getenv("SIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("SIM_CANCEL_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.CancelRatio = f
		}
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func report(operation string, m *OperationMetrics) {
	avg, p50, p95, max := m.Stats()
	fmt.Printf("\n%s:\n", operation)
	fmt.Printf("  total=%d success=%d rate_limited=%d rejected=%d error=%d\n",
		m.Total, m.Success, m.RateLimited, m.Rejected, m.Error)
	fmt.Printf("  latency avg=%s p50=%s p95=%s max=%s\n", avg, p50, p95, max)
}
