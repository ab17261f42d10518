package models

import "time"

// RuntimeConfiguration is the durable per-tenant checkpoint. LastSyncBlock is
// the block at which the mirror is known-consistent and is only advanced
// after a full sync+snapshot pass succeeds.
type RuntimeConfiguration struct {
	Tenant            string    `gorm:"primaryKey;type:text"`
	Decimals          int32     `gorm:"not null;default:18"`
	LastSyncBlock     uint64    `gorm:"not null;default:0"`
	LastSnapshotBlock uint64    `gorm:"not null;default:0"`
	SnapshotBlockLag  uint64    `gorm:"not null;default:0"`
	DeployTimestamp   time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt         time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (RuntimeConfiguration) TableName() string {
	return "runtime_configurations"
}
