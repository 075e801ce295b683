package workers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"loyalty-program-system/models"
	"loyalty-program-system/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newWorkerFixture(t *testing.T) (*EvaluationWorker, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Purchase{},
		&models.Achievement{},
		&models.Badge{},
		&models.UserAchievement{},
		&models.UserBadge{},
	))

	evaluator := services.NewEvaluationService(db, services.NewCatalogService(db, nil), services.LogSink{})
	return NewEvaluationWorker(db, evaluator), db
}

func recordPurchase(t *testing.T, db *gorm.DB, createdAt time.Time) *models.Purchase {
	t.Helper()

	user := &models.User{ID: uuid.NewString(), Name: "John Doe", Email: uuid.NewString() + "@example.com"}
	require.NoError(t, db.Create(user).Error)

	purchase := &models.Purchase{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		Amount:         100,
		Currency:       "USD",
		Status:         models.PurchaseStatusCompleted,
		CashbackAmount: 2,
		CashbackStatus: models.CashbackStatusPending,
		TransactionID:  uuid.NewString(),
		CreatedAt:      createdAt,
	}
	require.NoError(t, db.Create(purchase).Error)
	return purchase
}

func evaluatedAt(t *testing.T, db *gorm.DB, purchaseID string) *time.Time {
	t.Helper()
	var stored models.Purchase
	require.NoError(t, db.First(&stored, "id = ?", purchaseID).Error)
	return stored.EvaluatedAt
}

func TestWorker_ProcessesEnqueuedPurchase(t *testing.T) {
	worker, db := newWorkerFixture(t)
	purchase := recordPurchase(t, db, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Start(ctx)

	require.True(t, worker.Enqueue(purchase.ID))

	assert.Eventually(t, func() bool {
		return evaluatedAt(t, db, purchase.ID) != nil
	}, 3*time.Second, 20*time.Millisecond, "queued purchase should get evaluated")
}

func TestWorker_SweepRecoversUnevaluatedPurchases(t *testing.T) {
	worker, db := newWorkerFixture(t)

	// Recorded well past the grace window and never queued — the crash /
	// full-queue case the sweep exists for.
	old := recordPurchase(t, db, time.Now().Add(-time.Hour))
	// Fresh purchase inside the grace window is left for the queue.
	fresh := recordPurchase(t, db, time.Now())

	worker.Sweep(context.Background())

	assert.NotNil(t, evaluatedAt(t, db, old.ID))
	assert.Nil(t, evaluatedAt(t, db, fresh.ID))
}

func TestWorker_EnqueueNeverBlocks(t *testing.T) {
	worker, db := newWorkerFixture(t)
	purchase := recordPurchase(t, db, time.Now())

	// No worker loop running: fill the queue past capacity. Enqueue must
	// return instead of blocking, reporting the overflow.
	overflowed := false
	for i := 0; i < 1000; i++ {
		if !worker.Enqueue(purchase.ID) {
			overflowed = true
			break
		}
	}
	assert.True(t, overflowed)
}
