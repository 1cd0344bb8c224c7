package sweep

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"hostelpass/internal/shared"
)

var (
	sweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hostelpass_sweep_runs_total",
		Help: "Number of expiry sweep runs completed.",
	})
	sweepExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hostelpass_sweep_expired_total",
		Help: "Number of permission letters retired by the sweep.",
	})
	sweepDelayed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hostelpass_sweep_delayed_students",
		Help: "Students still out past their arrival time as of the last sweep.",
	})
)

// Sweeper reconciles approved permission letters whose arrival time has
// lapsed against the entry/exit ledger. Each transition is idempotent, so
// overlapping or redundant runs are harmless.
type Sweeper struct {
	pls      *mongo.Collection
	logs     *mongo.Collection
	interval time.Duration
}

// Summary reports what one sweep run did
type Summary struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Delayed int `json:"delayed"`
}

// NewSweeper creates a sweeper over the given database
func NewSweeper(db *mongo.Database, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		pls:      db.Collection(shared.ColPLs),
		logs:     db.Collection(shared.ColLogs),
		interval: interval,
	}
}

// Run sweeps once immediately, then on every tick until the context is
// cancelled. Intended to be started once at boot in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	s.runLogged(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Expiry sweeper stopped")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Sweeper) runLogged(ctx context.Context) {
	summary, err := s.RunOnce(ctx)
	if err != nil {
		log.Printf("Warning: expiry sweep failed: %v", err)
		return
	}
	log.Printf("Expiry sweep: checked=%d updated=%d delayed=%d",
		summary.Checked, summary.Updated, summary.Delayed)
}

// RunOnce performs a single reconciliation pass. For each approved letter
// past its arrival time and not yet fully used:
//   - entry already logged: retire as expired and fully used, usedAt set to
//     the logged entry time
//   - exited but never returned: leave untouched, count as delayed
//   - never exited at all: retire as expired, not fully used
func (s *Sweeper) RunOnce(ctx context.Context) (*Summary, error) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	now := time.Now()
	cursor, err := s.pls.Find(runCtx, bson.M{
		"status":            shared.PLApproved,
		"arrival_date_time": bson.M{"$lt": now},
		"is_fully_used":     bson.M{"$ne": true},
	})
	if err != nil {
		return nil, err
	}
	var letters []shared.PermissionLetter
	if err := cursor.All(runCtx, &letters); err != nil {
		return nil, err
	}

	summary := &Summary{Checked: len(letters)}
	for _, pl := range letters {
		var entry shared.EntryExitLog
		err := s.logs.FindOne(runCtx, bson.M{"permission_letter_id": pl.ID}).Decode(&entry)

		switch {
		case err == mongo.ErrNoDocuments:
			// Never exited. The letter lapsed unused.
			if err := s.expire(runCtx, pl.ID, bson.M{
				"status":        shared.PLExpired,
				"is_fully_used": false,
				"updated_at":    now,
			}); err != nil {
				log.Printf("Warning: sweep expire of PL %s failed: %v", pl.ID.Hex(), err)
				continue
			}
			summary.Updated++

		case err != nil:
			log.Printf("Warning: sweep log lookup for PL %s failed: %v", pl.ID.Hex(), err)

		case entry.EntryTime != nil:
			// Returned but the entry step's retire write was lost.
			if err := s.expire(runCtx, pl.ID, bson.M{
				"status":        shared.PLExpired,
				"is_fully_used": true,
				"used_at":       entry.EntryTime,
				"updated_at":    now,
			}); err != nil {
				log.Printf("Warning: sweep expire of PL %s failed: %v", pl.ID.Hex(), err)
				continue
			}
			summary.Updated++

		default:
			// Exited, not back yet. Surfaced by the delayed-vacation report.
			summary.Delayed++
		}
	}

	sweepRuns.Inc()
	sweepExpired.Add(float64(summary.Updated))
	sweepDelayed.Set(float64(summary.Delayed))

	return summary, nil
}

func (s *Sweeper) expire(ctx context.Context, id interface{}, set bson.M) error {
	_, err := s.pls.UpdateOne(ctx, bson.M{"_id": id, "status": shared.PLApproved}, bson.M{"$set": set})
	return err
}
