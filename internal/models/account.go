package models

import "time"

type Account struct {
	ID                    string     `gorm:"primaryKey;type:text"`
	UserID                string     `gorm:"type:text;not null;index"`
	Name                  string     `gorm:"type:text"`
	AccountSource         *string    `gorm:"type:text;index"`
	QuotesCount           int64      `gorm:"not null;default:0"`
	PositionsCount        int64      `gorm:"not null;default:0"`
	LastActivityTimestamp *time.Time `gorm:"type:timestamptz;index"`
	Timestamp             time.Time  `gorm:"type:timestamptz;not null;index"`
	BlockNumber           uint64     `gorm:"not null;index"`
	Tenant                string     `gorm:"type:text;not null;index"`
}

func (Account) TableName() string {
	return "accounts"
}
