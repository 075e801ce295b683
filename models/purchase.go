package models

import (
	"time"
)

// PurchaseStatus is the settlement state of a purchase. Only completed
// purchases count toward loyalty aggregates.
type PurchaseStatus string

const (
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

// CashbackStatus tracks the payout of the cashback credit through the
// external payment gateway. It is the only field mutated after creation.
type CashbackStatus string

const (
	CashbackStatusPending CashbackStatus = "pending"
	CashbackStatusPaid    CashbackStatus = "paid"
	CashbackStatusFailed  CashbackStatus = "failed"
)

// CashbackRate is the fixed cashback percentage applied to every purchase.
const CashbackRate = 0.02

// Purchase is an append-only record of a customer purchase.
type Purchase struct {
	ID             string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID         string         `gorm:"index;not null" json:"user_id"`
	Amount         float64        `gorm:"not null" json:"amount"`
	Currency       string         `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	Status         PurchaseStatus `gorm:"type:varchar(16);not null;default:'completed';index" json:"status"`
	CashbackAmount float64        `json:"cashback_amount"`
	CashbackStatus CashbackStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"cashback_status"`
	PaymentMethod  *string        `json:"payment_method,omitempty"`
	TransactionID  string         `gorm:"uniqueIndex;not null" json:"transaction_id"`

	// EvaluatedAt is stamped once the achievement pipeline has run for this
	// purchase. NULL means the evaluation sweep still owes it a pass.
	EvaluatedAt *time.Time `gorm:"index" json:"-"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
