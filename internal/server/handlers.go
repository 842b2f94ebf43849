package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"linenotes/internal/api"
	"linenotes/internal/models"
	"linenotes/internal/notes"
	"linenotes/internal/service"
	"linenotes/internal/tracker"
)

const (
	defaultJSONMaxBody = 1 << 20  // 1 MiB
	contentJSONMaxBody = 32 << 20 // 32 MiB
)

func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	code := errorCode(status, err)
	numericCode := errorNumericCode(status, err)
	message := err.Error()

	fields := []any{"status", status, "code", code, "error_code", numericCode, "error", err}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	}

	switch {
	case status >= 500 && numericCode != ErrCodeStoreFailure:
		s.log().Error("request error", fields...)
		message = "internal error"
	case status >= 500:
		s.log().Error("request error", fields...)
	case status >= 400 && shouldWarnClientError(status):
		s.log().Warn("request rejected", fields...)
	case status >= 400:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, status, api.ErrorResponse{Error: message, Code: code, ErrorCode: numericCode})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	var existing apiError
	if errors.As(err, &existing) {
		if existing.status != 0 {
			return existing
		}
	}

	return apiError{status: status, code: code, errCode: errCode, err: err}
}

func badRequest(err error) error {
	return badRequestCode(err, ErrCodeInvalidArgument)
}

func badRequestCode(err error, code int) error {
	return makeAPIError(http.StatusBadRequest, "invalid_argument", code, err)
}

func notFound(err error) error {
	return makeAPIError(http.StatusNotFound, "not_found", ErrCodeCommentNotFound, err)
}

func conflictCode(err error, code int) error {
	return makeAPIError(http.StatusConflict, "conflict", code, err)
}

func internalError(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeInternal, err)
}

func storeFailure(err error) error {
	return makeAPIError(http.StatusInternalServerError, "persistence_failure", ErrCodeStoreFailure, err)
}

func unavailable(err error) error {
	return makeAPIError(http.StatusServiceUnavailable, "unavailable", ErrCodeServiceClosed, err)
}

func httpStatusFromError(err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func errorCode(status int, err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.code != "" {
		return apiErr.code
	}
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "resource_exhausted"
	case http.StatusInternalServerError:
		return "internal"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return ""
	}
}

func errorNumericCode(status int, err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.errCode > 0 {
		return apiErr.errCode
	}
	return defaultErrorCodeByStatus(status)
}

func shouldWarnClientError(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// classifyServiceError maps service and store errors onto the API taxonomy.
func classifyServiceError(err error) error {
	var existing apiError
	switch {
	case errors.As(err, &existing):
		return existing
	case errors.Is(err, models.ErrInvalid):
		return badRequest(err)
	case errors.Is(err, notes.ErrNotFound):
		return notFound(err)
	case errors.Is(err, notes.ErrConflict):
		return conflictCode(err, ErrCodeRenameTargetUsed)
	case errors.Is(err, tracker.ErrNotPrepared):
		return conflictCode(err, ErrCodeEditNotPrepared)
	case errors.Is(err, service.ErrClosed):
		return unavailable(err)
	case notes.IsPersistError(err):
		return storeFailure(err)
	default:
		return internalError(err)
	}
}

// mutationWarning turns a persistence failure of an applied change into a
// warning. Any other error is returned unchanged.
func mutationWarning(err error) (string, error) {
	if err != nil && notes.IsPersistError(err) {
		return err.Error(), nil
	}
	return "", err
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	maxBytes := defaultJSONMaxBody
	switch r.URL.Path {
	case "/v1/edits", "/v1/sync", "/v1/patch":
		maxBytes = contentJSONMaxBody
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))
	return json.NewDecoder(r.Body).Decode(dst)
}

func classifyDecodeJSONError(err error) error {
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return badRequestCode(fmt.Errorf("invalid JSON payload"), ErrCodeInvalidJSON)
	}

	return badRequestCode(err, ErrCodeInvalidJSON)
}

// decodeJSONReq decodes and validates a request body, writing the error
// response itself when either step fails.
func (s *Server) decodeJSONReq(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyDecodeJSONError(err))
		return false
	}
	if err := validateRequest(dst); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := classifyServiceError(err)
	s.writeErrorReq(w, r, httpStatusFromError(apiErr), apiErr)
}

func (s *Server) withLimiter(w http.ResponseWriter, r *http.Request, limiter chan struct{}, name string, fn func()) {
	if !s.acquireLimiter(limiter, w, r, name) {
		return
	}
	defer s.releaseLimiter(limiter)
	fn()
}

func requireQueryPath(r *http.Request) (string, error) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		return "", badRequestCode(fmt.Errorf("path is required"), ErrCodeMissingRequired)
	}
	return path, nil
}

func requireQueryLine(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("line"))
	if raw == "" {
		return 0, badRequestCode(fmt.Errorf("line is required"), ErrCodeMissingRequired)
	}
	line, err := strconv.Atoi(raw)
	if err != nil || line < 0 {
		return 0, badRequestCode(fmt.Errorf("invalid line %q", raw), ErrCodeInvalidLine)
	}
	return line, nil
}

func (s *Server) queryPathOrBadRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	path, err := requireQueryPath(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return "", false
	}
	return path, true
}

func (s *Server) queryLineOrBadRequest(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	path, ok := s.queryPathOrBadRequest(w, r)
	if !ok {
		return "", 0, false
	}
	line, err := requireQueryLine(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return "", 0, false
	}
	return path, line, true
}
