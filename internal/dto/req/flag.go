package req

type SetFlagRequest struct {
	// pointer so that an explicit false still binds
	Value *bool `json:"value" binding:"required"`
}

type FlagNameRequest struct {
	Name string `uri:"name" binding:"required"`
}
