package models

import "time"

type User struct {
	ID          string    `gorm:"primaryKey;type:text"`
	Timestamp   time.Time `gorm:"type:timestamptz;not null;index"`
	Transaction string    `gorm:"type:text"`
	Tenant      string    `gorm:"type:text;not null;index"`
}

func (User) TableName() string {
	return "users"
}
