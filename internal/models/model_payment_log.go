package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/streambox/pkg/types"
)

type PaymentLogStatus string

const (
	PaymentLogStatusReceived     PaymentLogStatus = "received"
	PaymentLogStatusHandled      PaymentLogStatus = "handled"
	PaymentLogStatusHandleFailed PaymentLogStatus = "handle_failed"
)

type PaymentLogKind string

const (
	PaymentLogKindVerify  PaymentLogKind = "verify"
	PaymentLogKindWebhook PaymentLogKind = "webhook"
)

// PaymentLog records every payment verification attempt and gateway webhook.
type PaymentLog struct {
	ID        string              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Kind      PaymentLogKind      `gorm:"column:kind;type:varchar(16);not null" json:"kind"`
	Provider  types.PaymentMethod `gorm:"column:provider;type:varchar(16);not null" json:"provider"`
	UserID    *string             `gorm:"column:user_id;type:varchar(64);index" json:"user_id"`
	TraceID   string              `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	OrderID   string              `gorm:"column:order_id;type:varchar(128);index" json:"order_id"`
	PaymentID string              `gorm:"column:payment_id;type:varchar(128);index" json:"payment_id"`
	Data      datatypes.JSON      `gorm:"column:data;type:jsonb" json:"data"`
	Result    *datatypes.JSON     `gorm:"column:result;type:jsonb" json:"result"`
	Status    PaymentLogStatus    `gorm:"column:status;type:varchar(16);not null" json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func (PaymentLog) TableName() string { return "payment_log" }
