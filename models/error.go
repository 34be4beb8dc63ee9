package models

// ErrorMessageResponse returns the error message response struct
type ErrorMessageResponse struct {
	Response MessageError
}

// MessageError contains the inner details for the error message response.
// Reauthenticate is set when the caller's session expired and it should log in again.
type MessageError struct {
	Message        string
	Error          string
	Reauthenticate bool `json:",omitempty"`
}

// HealthCheckResponse returns the health check response
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}
