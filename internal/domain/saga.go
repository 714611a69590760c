package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SagaStatusPending     = "pending"
	SagaStatusDone        = "done"
	SagaStatusCompensated = "compensated"

	SagaActionStatusPending  = "pending"
	SagaActionStatusDone     = "done"
	SagaActionStatusCanceled = "canceled"
)

// SagaRun groups the blob side effects of one multi-document transition.
// Actions are appended inside the transition's DB transaction and
// executed (or compensated) after it resolves.
type SagaRun struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Status      string    `gorm:"not null" json:"status"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SagaRun) TableName() string { return "saga_run" }

type SagaAction struct {
	ID      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SagaID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"saga_id"`
	Seq     int            `gorm:"not null" json:"seq"`
	Kind    string         `gorm:"not null" json:"kind"`
	Payload datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Status  string         `gorm:"not null" json:"status"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SagaAction) TableName() string { return "saga_action" }
