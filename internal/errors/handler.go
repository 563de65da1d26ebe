package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"docqa/internal/config"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
	// RequestID is included in development/staging for debugging
	RequestID string `json:"request_id,omitempty"`
	// Details are only included in development mode
	Details string `json:"details,omitempty"`
}

// ErrorHandler provides secure error handling based on configuration
type ErrorHandler struct {
	config *config.Config
}

// NewErrorHandler creates a new error handler with the given configuration
func NewErrorHandler(cfg *config.Config) *ErrorHandler {
	return &ErrorHandler{
		config: cfg,
	}
}

// HandleError dispatches err to the matching handler based on its type.
// Anything that is not a StandardError is treated as an internal error.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	switch TypeOf(err) {
	case TypeAuth, TypeAuthMissing, TypeAuthHeader, TypeAuthToken:
		h.HandleAuthError(w, r, err, requestID)
	case TypeValidation:
		h.HandleValidationError(w, r, err, requestID)
	case TypeIngest:
		h.HandleIngestError(w, r, err, requestID)
	case TypeEmbedding:
		h.HandleServiceError(w, r, "embedding", err, requestID)
	case TypeSynthesis:
		h.HandleServiceError(w, r, "language model", err, requestID)
	case TypeNoIndex:
		h.HandleNotFoundError(w, r, "document index", err, requestID)
	case TypeSessionBusy, TypeUserExists:
		h.HandleConflictError(w, r, err, requestID)
	case TypeIndex:
		h.HandleIndexError(w, r, err, requestID)
	default:
		h.HandleInternalError(w, r, err, requestID)
	}
}

// HandleAuthError handles authentication-related errors with consistent responses
func (h *ErrorHandler) HandleAuthError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	var response ErrorResponse

	if h.secure() {
		// In secure mode, provide minimal information to prevent user enumeration
		response = ErrorResponse{
			Code:      http.StatusUnauthorized,
			Status:    "Unauthorized",
			Message:   "Authentication required",
			RequestID: h.getRequestID(requestID),
		}
	} else {
		response = ErrorResponse{
			Code:      http.StatusUnauthorized,
			Status:    "Unauthorized",
			Message:   "Authentication failed",
			RequestID: requestID,
			Details:   err.Error(),
		}
	}

	h.logError(TypeOf(err), err, requestID, r)
	h.writeJSONError(w, response)
}

// HandleValidationError handles input validation errors
func (h *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	var response ErrorResponse

	if h.secure() {
		response = ErrorResponse{
			Code:      http.StatusBadRequest,
			Status:    "Bad Request",
			Message:   "Invalid request",
			RequestID: h.getRequestID(requestID),
		}
	} else {
		response = ErrorResponse{
			Code:      http.StatusBadRequest,
			Status:    "Bad Request",
			Message:   MessageOf(err),
			RequestID: requestID,
			Details:   err.Error(),
		}
	}

	h.logError(TypeValidation, err, requestID, r)
	h.writeJSONError(w, response)
}

// HandleIngestError handles documents that could not be parsed
func (h *ErrorHandler) HandleIngestError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	response := ErrorResponse{
		Code:      http.StatusUnprocessableEntity,
		Status:    "Unprocessable Entity",
		Message:   MessageOf(err),
		RequestID: h.getRequestID(requestID),
	}

	if !h.secure() {
		response.Details = err.Error()
	}

	h.logError(TypeIngest, err, requestID, r)
	h.writeJSONError(w, response)
}

// HandleInternalError handles internal server errors
func (h *ErrorHandler) HandleInternalError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	response := ErrorResponse{
		Code:      http.StatusInternalServerError,
		Status:    "Internal Server Error",
		Message:   "An internal error occurred",
		RequestID: h.getRequestID(requestID),
	}

	// Never expose internal error details in production
	if h.config.IsDevelopment() && h.config.Security.ErrorMode != "secure" {
		response.Details = err.Error()
	}

	h.logError("INTERNAL_ERROR", err, requestID, r)
	h.writeJSONError(w, response)
}

// HandleNotFoundError handles resource not found errors
func (h *ErrorHandler) HandleNotFoundError(w http.ResponseWriter, r *http.Request, resource string, err error, requestID string) {
	var response ErrorResponse

	if h.secure() {
		response = ErrorResponse{
			Code:      http.StatusNotFound,
			Status:    "Not Found",
			Message:   "Resource not found",
			RequestID: h.getRequestID(requestID),
		}
	} else {
		response = ErrorResponse{
			Code:      http.StatusNotFound,
			Status:    "Not Found",
			Message:   MessageOf(err),
			RequestID: requestID,
			Details:   "resource: " + resource,
		}
	}

	h.logError(TypeNoIndex, err, requestID, r)
	h.writeJSONError(w, response)
}

// HandleConflictError handles requests that clash with the session's state
func (h *ErrorHandler) HandleConflictError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	response := ErrorResponse{
		Code:      http.StatusConflict,
		Status:    "Conflict",
		Message:   MessageOf(err),
		RequestID: h.getRequestID(requestID),
	}

	h.logError(TypeOf(err), err, requestID, r)
	h.writeJSONError(w, response)
}

// HandleIndexError handles vector index storage errors
func (h *ErrorHandler) HandleIndexError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	response := ErrorResponse{
		Code:      http.StatusInternalServerError,
		Status:    "Internal Server Error",
		Message:   "Index operation failed",
		RequestID: h.getRequestID(requestID),
	}

	// Only show storage errors in development
	if h.config.IsDevelopment() && h.config.Security.ErrorMode != "secure" {
		response.Details = err.Error()
	}

	h.logError(TypeIndex, err, requestID, r)
	h.writeJSONError(w, response)
}

// HandleServiceError handles external service errors (embedding, language model)
func (h *ErrorHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, service string, err error, requestID string) {
	response := ErrorResponse{
		Code:      http.StatusBadGateway,
		Status:    "Bad Gateway",
		Message:   "External service unavailable",
		RequestID: h.getRequestID(requestID),
	}

	if h.config.IsDevelopment() && h.config.Security.ErrorMode != "secure" {
		response.Message = "Service unavailable: " + service
		response.Details = err.Error()
	}

	h.logError(TypeOf(err), err, requestID, r)
	h.writeJSONError(w, response)
}

// writeJSONError writes an error response as JSON
func (h *ErrorHandler) writeJSONError(w http.ResponseWriter, response ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.Code)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("encoding error response", "error", err)
	}
}

// logError logs errors with request context
func (h *ErrorHandler) logError(errorType string, err error, requestID string, r *http.Request) {
	attrs := []any{
		"type", errorType,
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"user_agent", r.Header.Get("User-Agent"),
		"remote_ip", getClientIP(r),
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	slog.Error("request failed", attrs...)
}

func (h *ErrorHandler) secure() bool {
	return h.config.Security.ErrorMode == "secure" || h.config.IsProduction()
}

// getRequestID returns request ID for logging, only in development
func (h *ErrorHandler) getRequestID(requestID string) string {
	if h.config.IsProduction() && h.config.Security.ErrorMode == "secure" {
		return ""
	}
	return requestID
}

// getClientIP extracts the real client IP from request headers
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
