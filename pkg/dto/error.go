package dto

// ErrorResponse is the body of every failed request. Code is one of
// permission-denied, invalid-argument, already-exists, unauthenticated,
// not-found or internal.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
