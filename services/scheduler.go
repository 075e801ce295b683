// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const payoutBatchSize = 100

// StartPayoutScheduler runs the cashback payout sweep every minute: each
// tick takes a batch of completed purchases still carrying a pending
// cashback and settles them through the configured gateway.
func (s *PaymentService) StartPayoutScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
			defer cancel()
			if err := s.PayPendingCashback(ctx, payoutBatchSize); err != nil {
				log.Printf("[PayoutScheduler] %v", err)
			}
		}),
	)
}
