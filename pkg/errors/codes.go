package errors

import "net/http"

// ErrorCode identifies a specific failure category.  Codes are stable strings
// so they can be emitted as metric labels and matched by API clients.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every layer.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeValidation         ErrorCode = "COMMON_006"
	ErrCodeSerialization      ErrorCode = "COMMON_007"
	ErrCodeCacheError         ErrorCode = "COMMON_008"
	ErrCodeExternalService    ErrorCode = "COMMON_009"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_010"
	ErrCodeUnknown            ErrorCode = "COMMON_999"
	ErrCodeOK                 ErrorCode = "OK"
)

// Detection engine error codes.
const (
	// ErrCodeDetectionFailed marks an unrecoverable failure inside the
	// analysis pipeline itself.
	ErrCodeDetectionFailed ErrorCode = "DET_001"

	// ErrCodeTextTooLarge marks input text exceeding the configured maximum.
	ErrCodeTextTooLarge ErrorCode = "DET_002"

	// ErrCodeAnalysisCancelled marks an analysis superseded by a newer
	// generation for the same document.
	ErrCodeAnalysisCancelled ErrorCode = "DET_003"
)

// Entity registry error codes.
const (
	// ErrCodeRegistryUnavailable marks a registry fetch failure with no
	// cached snapshot to fall back to.
	ErrCodeRegistryUnavailable ErrorCode = "REG_001"

	// ErrCodeRegistryQueryFailed marks a failed registry query.
	ErrCodeRegistryQueryFailed ErrorCode = "REG_002"

	// ErrCodeEntityMalformed marks a single registry entity that could not
	// be used for matching; such entities are skipped, never fatal.
	ErrCodeEntityMalformed ErrorCode = "REG_003"
)

// AI adapter error codes.  Adapter failures always degrade gracefully; these
// codes appear in logs and metrics, never in an Analyze rejection.
const (
	ErrCodeAdapterUnavailable ErrorCode = "AI_001"
	ErrCodeAdapterMalformed   ErrorCode = "AI_002"
	ErrCodeAdapterTimeout     ErrorCode = "AI_003"
)

// HTTPStatus maps an ErrorCode to the HTTP status code returned by the API
// layer.  Unknown codes map to 500.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeOK:
		return http.StatusOK
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeTextTooLarge:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeTimeout, ErrCodeAdapterTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeServiceUnavailable, ErrCodeRegistryUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
