package model

import "time"

// StoredSession is the durable client-local copy of the current Session.
type StoredSession struct {
	Key       string `gorm:"primaryKey;size:64;not null"`
	Payload   string `gorm:"type:text;not null"` // JSON encoded Session
	UpdatedAt time.Time
}

type ReconciliationStatus string

const (
	ReconciliationPending  ReconciliationStatus = "PENDING"
	ReconciliationResolved ReconciliationStatus = "RESOLVED"
)

// ReconciliationReason says why a receipt needs attention. An unrecorded capture is
// resolved once the backend shows the order paid; a duplicate needs a refund.
type ReconciliationReason string

const (
	ReasonUnrecorded ReconciliationReason = "UNRECORDED"
	ReasonDuplicate  ReconciliationReason = "DUPLICATE"
)

// Reconciliation records a provider receipt the backend refused to record as paid.
type Reconciliation struct {
	ID         string               `gorm:"primaryKey;size:36;not null" json:"id"`
	OrderID    string               `gorm:"size:64;index;not null" json:"orderId"`
	ReceiptID  string               `gorm:"size:128;index" json:"receiptId"`
	Payload    string               `gorm:"type:text" json:"payload"`
	Message    string               `gorm:"size:512" json:"message"`
	Reason     ReconciliationReason `gorm:"size:16;not null;default:UNRECORDED" json:"reason"`
	Status     ReconciliationStatus `gorm:"size:16;index;not null" json:"status"`
	CreatedAt  time.Time            `json:"createdAt"`
	ResolvedAt *time.Time           `json:"resolvedAt,omitempty"`
}
