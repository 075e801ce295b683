package services

import (
	"log"

	"loyalty-program-system/models"
)

// Loyalty facts emitted by the write pipeline. The trigger graph is an
// explicit call chain (recorder → evaluator → cascader); these events exist
// for observers (notifications, analytics), never for control flow.

type PurchaseCompleted struct {
	Purchase models.Purchase
}

type AchievementUnlocked struct {
	UserID      string
	Achievement models.Achievement
}

type BadgeUnlocked struct {
	UserID string
	Badge  models.Badge
}

// EventSink consumes loyalty facts. Sinks must not block the write path.
type EventSink interface {
	PurchaseCompleted(e PurchaseCompleted)
	AchievementUnlocked(e AchievementUnlocked)
	BadgeUnlocked(e BadgeUnlocked)
}

// LogSink is the default sink: one log line per fact.
type LogSink struct{}

func (LogSink) PurchaseCompleted(e PurchaseCompleted) {
	log.Printf("🛒 Purchase completed: user=%s amount=%.2f %s cashback=%.2f txn=%s",
		e.Purchase.UserID, e.Purchase.Amount, e.Purchase.Currency, e.Purchase.CashbackAmount, e.Purchase.TransactionID)
}

func (LogSink) AchievementUnlocked(e AchievementUnlocked) {
	log.Printf("🏆 Achievement unlocked: %s → %s (+%d pts)", e.Achievement.Name, e.UserID, e.Achievement.Points)
}

func (LogSink) BadgeUnlocked(e BadgeUnlocked) {
	log.Printf("🎖️ Badge earned: %s (level %d) → %s", e.Badge.Name, e.Badge.Level, e.UserID)
}
