package utils

import (
	"errors"
	"net/http"

	apperrors "renamewiki-system/pkg/errors"

	"github.com/labstack/echo/v4"
)

type HttpResponse struct {
	Status  bool        `json:"status"`
	Body    interface{} `json:"body,omitempty"`
	Message string      `json:"message"`
}

type HttpResponsePagination struct {
	Status     bool        `json:"status"`
	Body       interface{} `json:"body,omitempty"`
	Message    string      `json:"message"`
	TotalCount uint64      `json:"total_count"`
}

var errorStatusCodes = map[error]int{
	apperrors.ErrNotFound:           http.StatusNotFound,
	apperrors.ErrBadRequest:         http.StatusBadRequest,
	apperrors.ErrUnauthorized:       http.StatusUnauthorized,
	apperrors.ErrEmptyAuthHeader:    http.StatusUnauthorized,
	apperrors.ErrInvalidAuthHeader:  http.StatusUnauthorized,
	apperrors.ErrInvalidToken:       http.StatusUnauthorized,
	apperrors.ErrTokenExpired:       http.StatusUnauthorized,
	apperrors.ErrTokenIsNotAccess:   http.StatusUnauthorized,
	apperrors.ErrInvalidCredentials: http.StatusUnauthorized,
	apperrors.ErrForbidden:          http.StatusForbidden,
	apperrors.ErrRequestLocked:      http.StatusConflict,
	apperrors.ErrStateConflict:      http.StatusConflict,
	apperrors.ErrDuplicateComment:   http.StatusConflict,
	apperrors.ErrNoChanges:          http.StatusBadRequest,
	apperrors.ErrPrivacyForced:      http.StatusBadRequest,
	apperrors.ErrUnknownTargetWiki:  http.StatusBadRequest,
}

func SuccessResponse(ctx echo.Context, body interface{}, message string, code int, totalCount ...uint64) error {
	if len(totalCount) > 0 {
		return ctx.JSON(code, &HttpResponsePagination{
			Status:     true,
			Body:       body,
			Message:    message,
			TotalCount: totalCount[0],
		})
	}

	return ctx.JSON(code, &HttpResponse{
		Status:  true,
		Body:    body,
		Message: message,
	})
}

func ErrorResponse(ctx echo.Context, err error) error {
	message := err.Error()
	code := http.StatusInternalServerError

	for sentinel, statusCode := range errorStatusCodes {
		if errors.Is(err, sentinel) {
			code = statusCode
			break
		}
	}

	var invalidInput *apperrors.InvalidInputError
	if errors.As(err, &invalidInput) {
		code = http.StatusBadRequest
		message = invalidInput.Message
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}
	}

	return ctx.JSON(code, &HttpResponse{
		Status:  false,
		Body:    struct{}{},
		Message: message,
	})
}
