package resp

import "time"

type FlagItem struct {
	FlagName  string    `json:"flag_name"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DeleteFlagResponse struct {
	Deleted bool `json:"deleted"`
}

type ListFlagsResponse struct {
	Flags []FlagItem `json:"flags"`
}
