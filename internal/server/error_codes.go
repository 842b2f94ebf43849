package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidJSON     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidQuery    = 1003
	ErrCodeInvalidPath     = 1004
	ErrCodeInvalidLine     = 1005
	ErrCodeInvalidText     = 1006
	ErrCodeInvalidEdit     = 1007
	ErrCodeInvalidPatch    = 1008
	ErrCodeMissingRequired = 1009

	// Domain state (2xxx)
	ErrCodeCommentNotFound  = 2001
	ErrCodeEditNotPrepared  = 2002
	ErrCodeRenameTargetUsed = 2101
	ErrCodeConflict         = 2102

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal       = 4001
	ErrCodeStoreFailure   = 4002
	ErrCodeExportFailed   = 4003
	ErrCodeServiceClosed  = 4004
	ErrCodeNotImplemented = 4005
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodeCommentNotFound
	case 409:
		return ErrCodeConflict
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	case 501:
		return ErrCodeNotImplemented
	case 503:
		return ErrCodeServiceClosed
	default:
		return 0
	}
}
