package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/roamnest/roamnest-backend/pkg/enums"
)

// PayoutAccount stores a payee's settlement destination. Banking fields are
// masked at write time; the raw details never enter this system.
type PayoutAccount struct {
	ID                uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID                 `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Provider          enums.PayoutProvider      `gorm:"column:provider;not null"`
	Status            enums.PayoutAccountStatus `gorm:"column:status;not null;default:'INCOMPLETE'"`
	HolderName        string                    `gorm:"column:holder_name"`
	MaskedAccount     string                    `gorm:"column:masked_account"`
	MaskedRouting     string                    `gorm:"column:masked_routing"`
	ProviderAccountID string                    `gorm:"column:provider_account_id"`
	Country           string                    `gorm:"column:country"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
