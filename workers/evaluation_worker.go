package workers

import (
	"context"
	"log"
	"time"

	"loyalty-program-system/models"
	"loyalty-program-system/services"

	"gorm.io/gorm"
)

// EvaluationWorker processes the achievement pipeline off the request path.
// Recorded purchases arrive on an in-process queue; a periodic sweep
// re-queries purchases whose evaluated_at stamp is still empty, so a full
// queue or a crash never loses a purchase — every recorded purchase is
// eventually evaluated.
type EvaluationWorker struct {
	DB        *gorm.DB
	Evaluator *services.EvaluationService

	jobs          chan string
	sweepInterval time.Duration
	sweepGrace    time.Duration
}

func NewEvaluationWorker(db *gorm.DB, evaluator *services.EvaluationService) *EvaluationWorker {
	return &EvaluationWorker{
		DB:            db,
		Evaluator:     evaluator,
		jobs:          make(chan string, 256),
		sweepInterval: time.Minute,
		sweepGrace:    30 * time.Second,
	}
}

// Enqueue hands a purchase to the worker without blocking. False means the
// queue was full; the sweep will pick the purchase up.
func (w *EvaluationWorker) Enqueue(purchaseID string) bool {
	select {
	case w.jobs <- purchaseID:
		return true
	default:
		log.Printf("⚠️ Evaluation queue full, purchase %s deferred to sweep", purchaseID)
		return false
	}
}

// Start runs the worker loop until the context is cancelled.
func (w *EvaluationWorker) Start(ctx context.Context) {
	log.Println("Starting achievement evaluation worker...")

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Evaluation worker stopped.")
			return
		case purchaseID := <-w.jobs:
			w.process(ctx, purchaseID)
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

func (w *EvaluationWorker) process(ctx context.Context, purchaseID string) {
	if err := w.Evaluator.ProcessPurchase(ctx, purchaseID); err != nil {
		// Purchase stays unstamped; the next sweep retries it.
		log.Printf("❌ Evaluation failed for purchase %s: %v", purchaseID, err)
	}
}

// Sweep evaluates every purchase that has been recorded for longer than the
// grace window without an evaluated_at stamp. The grace window keeps the
// sweep from racing the queue on freshly recorded purchases.
func (w *EvaluationWorker) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.sweepGrace)

	var purchases []models.Purchase
	if err := w.DB.WithContext(ctx).
		Where("evaluated_at IS NULL AND created_at <= ?", cutoff).
		Order("created_at ASC").
		Find(&purchases).Error; err != nil {
		log.Printf("❌ Evaluation sweep query failed: %v", err)
		return
	}

	if len(purchases) == 0 {
		return
	}

	log.Printf("🧹 Evaluation sweep picked up %d unevaluated purchase(s)", len(purchases))
	for i := range purchases {
		w.process(ctx, purchases[i].ID)
	}
}
