package httputil

// Machine-readable error codes included in error responses so clients can
// branch without parsing messages.
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeMissingFields      = "MISSING_FIELDS"
	CodeDuplicateUser      = "DUPLICATE_USER"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidAuthHeader  = "INVALID_AUTH_HEADER"
	CodeMissingAuth        = "MISSING_AUTH"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeInvalidTokenUserID = "INVALID_TOKEN_USER_ID"
	CodeRefreshRequired    = "REFRESH_TOKEN_REQUIRED"
	CodeInvalidRefresh     = "INVALID_REFRESH_TOKEN"
	CodeWrongOldPassword   = "WRONG_OLD_PASSWORD"
	CodeFileRequired       = "FILE_REQUIRED"
	CodeUploadFailed       = "UPLOAD_FAILED"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInternalError      = "INTERNAL_ERROR"
)
