package schedule

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestSweepCutoff_DateAndMinuteFromSameClock(t *testing.T) {
	// 01:30 local in UTC+10 is still the previous day in UTC; the cutoff
	// must follow the local calendar, not the absolute day boundary.
	zone := time.FixedZone("UTC+10", 10*3600)
	day, minute := sweepCutoff(time.Date(2025, 6, 10, 1, 30, 0, 0, zone))

	if want := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC); !day.Equal(want) {
		t.Errorf("day = %v, want %v", day, want)
	}
	if minute != 90 {
		t.Errorf("minute = %d, want 90", minute)
	}
}

func TestSweepCutoff_EndOfDay(t *testing.T) {
	day, minute := sweepCutoff(time.Date(2025, 6, 10, 23, 59, 30, 0, time.UTC))

	if want := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC); !day.Equal(want) {
		t.Errorf("day = %v, want %v", day, want)
	}
	if minute != 23*60+59 {
		t.Errorf("minute = %d, want 1439", minute)
	}
}

// DB-backed tests below need a disposable database; they skip unless
// TEST_POSTGRES_DSN points at one.

const blocksTestDDL = `
CREATE TABLE IF NOT EXISTS blocks (
	id uuid PRIMARY KEY,
	professional_id uuid NOT NULL,
	block_date date NOT NULL,
	start_minute int,
	end_minute int,
	block_type text NOT NULL,
	reason text,
	created_at timestamptz NOT NULL DEFAULT now()
)`

func testRepo(t *testing.T) *PgRepository {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(context.Background(), blocksTestDDL); err != nil {
		t.Fatalf("create blocks table: %v", err)
	}

	return NewPgRepository(pool)
}

func TestCreateBlock_ConcurrentOverlapAdmitsOne(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	profID := uuid.New()
	date := day("2025-06-10")

	// Every interval ends at 700, so any two of them intersect: no matter
	// which writer wins, all others must see the conflict.
	const writers = 8
	start := make(chan struct{})
	errs := make(chan error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		s, e := 600+10*i, 700
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := repo.CreateBlock(ctx, Block{
				ProfessionalID: profID,
				Date:           date,
				StartMinute:    &s,
				EndMinute:      &e,
				Type:           BlockPersonal,
			})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	var created, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrBlockOverlap):
			conflicted++
		default:
			t.Fatalf("CreateBlock: %v", err)
		}
	}
	if created != 1 || conflicted != writers-1 {
		t.Fatalf("created = %d, conflicted = %d; want exactly one winner among %d writers", created, conflicted, writers)
	}

	blocks, err := repo.ListBlocks(ctx, profID, date, date)
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("persisted blocks = %d, want 1", len(blocks))
	}
}

func TestCreateBlock_OverlapRules(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	profID := uuid.New()
	date := day("2025-06-11")

	s, e := 600, 660
	if _, err := repo.CreateBlock(ctx, Block{ProfessionalID: profID, Date: date, StartMinute: &s, EndMinute: &e, Type: BlockPersonal}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	// A full-day block conflicts with any block on the date.
	if _, err := repo.CreateBlock(ctx, Block{ProfessionalID: profID, Date: date, Type: BlockVacation}); !errors.Is(err, ErrBlockOverlap) {
		t.Fatalf("full-day over partial: err = %v, want ErrBlockOverlap", err)
	}

	// Boundary-touching intervals do not intersect.
	s2, e2 := 660, 720
	if _, err := repo.CreateBlock(ctx, Block{ProfessionalID: profID, Date: date, StartMinute: &s2, EndMinute: &e2, Type: BlockPersonal}); err != nil {
		t.Fatalf("adjacent interval: %v", err)
	}

	// Another professional's day is unaffected.
	if _, err := repo.CreateBlock(ctx, Block{ProfessionalID: uuid.New(), Date: date, Type: BlockVacation}); err != nil {
		t.Fatalf("other professional: %v", err)
	}
}
