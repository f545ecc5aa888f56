package response

import (
	"encoding/json"
	"net/http"

	"safarank-api/pkg/apierror"
)

// Response represents a standard API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// StatusBody is the minimal envelope used by the asynchronous reorder
// endpoint: {"status":"ok"} or {"status":"error","message":"..."}.
type StatusBody struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{
		Success: true,
		Data:    data,
	})
}

// JSONWithMeta sends a JSON response with pagination metadata.
func JSONWithMeta(w http.ResponseWriter, statusCode int, data interface{}, page, limit int, total int64) {
	write(w, statusCode, Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Page:  page,
			Limit: limit,
			Total: total,
		},
	})
}

// Error sends an error response. Errors that are not *apierror.Error are
// reported as a generic internal error.
func Error(w http.ResponseWriter, err error) {
	apiErr, ok := apierror.From(err)
	if !ok {
		apiErr = apierror.InternalError("an unexpected error occurred")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	w.Write(apiErr.ToJSON())
}

// StatusOK sends {"status":"ok"}.
func StatusOK(w http.ResponseWriter) {
	write(w, http.StatusOK, StatusBody{Status: "ok"})
}

// StatusError sends {"status":"error","message":...}. The status code comes
// from err when it is an *apierror.Error, otherwise 500. The message is the
// error text in both cases.
func StatusError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if apiErr, ok := apierror.From(err); ok {
		code = apiErr.StatusCode
	}
	write(w, code, StatusBody{Status: "error", Message: err.Error()})
}

// OK sends a 200 OK response.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

func write(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
