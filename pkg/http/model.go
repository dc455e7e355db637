package http

// APIResponse is the standard response envelope. The logical status travels
// in the body; the wire status stays 200.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one failed request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"index"`
	Message string                 `json:"message,omitempty" example:"index is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
