package errors

import "net/http"

// ErrorCode represents the type of error
type ErrorCode string

const (
	ErrFetchFailed         ErrorCode = "FETCH_FAILED"
	ErrWriteFailed         ErrorCode = "WRITE_FAILED"
	ErrConstraintViolation ErrorCode = "CONSTRAINT_VIOLATION"
	ErrNotAuthenticated    ErrorCode = "NOT_AUTHENTICATED"
	ErrNotFound            ErrorCode = "NOT_FOUND"
	ErrForbidden           ErrorCode = "FORBIDDEN"
	ErrValidation          ErrorCode = "VALIDATION_ERROR"
	ErrBadRequest          ErrorCode = "BAD_REQUEST"
	ErrInternalError       ErrorCode = "INTERNAL_ERROR"
)

// StatusCodeMap maps ErrorCode to HTTP status code
var StatusCodeMap = map[ErrorCode]int{
	ErrFetchFailed:         http.StatusBadGateway,
	ErrWriteFailed:         http.StatusBadGateway,
	ErrConstraintViolation: http.StatusConflict,
	ErrNotAuthenticated:    http.StatusUnauthorized,
	ErrNotFound:            http.StatusNotFound,
	ErrForbidden:           http.StatusForbidden,
	ErrValidation:          http.StatusUnprocessableEntity,
	ErrBadRequest:          http.StatusBadRequest,
	ErrInternalError:       http.StatusInternalServerError,
}

// StatusCode returns the HTTP status code for this error code
func (e ErrorCode) StatusCode() int {
	if code, ok := StatusCodeMap[e]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Op names the feed operation an error was raised from.
type Op string

const (
	OpFetch        Op = "fetch"
	OpCreatePost   Op = "create_post"
	OpToggleLike   Op = "toggle_like"
	OpAddComment   Op = "add_comment"
	OpListComments Op = "list_comments"
	OpDeletePost   Op = "delete_post"
	OpFollow       Op = "follow"
	OpRegister     Op = "register"
	OpIssueToken   Op = "issue_token"
	OpSubscribe    Op = "subscribe"
	OpSendMessage  Op = "send_message"
	OpListMessages Op = "list_messages"
	OpMarkRead     Op = "mark_read"
	OpSearch       Op = "search"
)
