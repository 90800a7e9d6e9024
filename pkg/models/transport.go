package models

// MessageResponse is the liveness payload served on GET /.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse carries a single failure message.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ValidationErrorResponse carries one entry per field that failed request validation.
type ValidationErrorResponse struct {
	Detail []ValidationError `json:"detail"`
}

// ValidationError represents a structured validation error
type ValidationError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}
