package v1

import "time"

// Flag is the wire representation of one persisted boolean flag.
type Flag struct {
	FlagName  string    `json:"flag_name"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
