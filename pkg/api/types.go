package api

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// RefreshResponse reports a manual refresh.
type RefreshResponse struct {
	Outcome string `json:"outcome"`
	Nodes   int    `json:"nodes"`
	Error   string `json:"error,omitempty"`
}

// SelectResponse carries the token of a started explanation request.
type SelectResponse struct {
	NodeID string `json:"node_id"`
	Token  uint64 `json:"token"`
}

// RelaxResponse reports the relaxation toggle.
type RelaxResponse struct {
	Enabled bool `json:"enabled"`
}

// StatusResponse summarises the engine for operators.
type StatusResponse struct {
	Running             bool    `json:"running"`
	Source              string  `json:"source"`
	Animator            string  `json:"animator"`
	Progress            float64 `json:"progress"`
	Tick                uint64  `json:"tick"`
	RefreshInterval     string  `json:"refresh_interval"`
	LastSuccess         string  `json:"last_success,omitempty"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	LastError           string  `json:"last_error,omitempty"`
}
