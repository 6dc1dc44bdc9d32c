package models

import "time"

// Delivery statuses.
const (
	DeliveryScheduled   = "scheduled"
	DeliveryReceived    = "received"
	DeliveryAccepted    = "accepted"
	DeliveryRejected    = "rejected"
	DeliverySentToLab   = "sent_to_lab"
	DeliveryAwaitingLab = "awaiting_lab"
)

// Delivery is a scheduled material delivery to an object. SSK schedules,
// the foreman receives, SSK accepts/rejects or routes samples to the lab.
type Delivery struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	UUID        string `gorm:"size:36;uniqueIndex"`
	ObjectID    uint   `gorm:"index;not null"`
	PlannedDate *time.Time
	Notes       string `gorm:"type:text"`
	Status      string `gorm:"size:20;default:scheduled;index"`
	CreatedByID string `gorm:"size:36"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Object    ConstructionObject `gorm:"foreignKey:ObjectID"`
	CreatedBy User               `gorm:"foreignKey:CreatedByID"`
}

// Invoice is a waybill attached to a delivery.
type Invoice struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	ObjectID   uint   `gorm:"index;not null"`
	DeliveryID uint   `gorm:"index;not null"`
	PDFURL     string `gorm:"size:1000"`
	Data       string `gorm:"type:json"` // recognized line items
	CreatedAt  time.Time

	Delivery Delivery `gorm:"foreignKey:DeliveryID"`
}

// Lab order statuses.
const (
	LabOrderSent = "sent"
	LabOrderDone = "done"
)

// LabOrder tracks material samples sent to the laboratory for a delivery.
type LabOrder struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	DeliveryID uint   `gorm:"index;not null"`
	Items      string `gorm:"type:json"` // [{invoice_item_id, sample_code}]
	Status     string `gorm:"size:16;default:sent"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Delivery Delivery `gorm:"foreignKey:DeliveryID"`
}
