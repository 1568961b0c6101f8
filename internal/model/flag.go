package model

import "time"

// ConfigFlag is one persisted boolean switch. flag_name is immutable once
// created; renaming a flag is delete + recreate.
type ConfigFlag struct {
	FlagName  string    `gorm:"column:flag_name;primaryKey" json:"flag_name"`
	Value     bool      `gorm:"not null;default:false" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ConfigFlag) TableName() string {
	return "config_flags"
}
