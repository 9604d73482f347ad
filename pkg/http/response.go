package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

func writeEnvelope(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

// DataResponse writes an envelope with an explicit status.
func DataResponse(c echo.Context, status int, data interface{}) error {
	return writeEnvelope(c, status, data)
}

// SuccessResponse writes a 200 envelope around data.
func SuccessResponse(c echo.Context, data interface{}) error {
	return writeEnvelope(c, http.StatusOK, data)
}

// CreatedResponse writes a 201 envelope around data.
func CreatedResponse(c echo.Context, data interface{}) error {
	return writeEnvelope(c, http.StatusCreated, data)
}

// ListResponse writes a 200 envelope around rows plus their total count.
func ListResponse(c echo.Context, rows interface{}, total int64) error {
	return writeEnvelope(c, http.StatusOK, &ListDataResponse{Rows: rows, Total: total})
}

// NoContentResponse writes an empty 204.
func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// BadRequestResponse writes a 400 envelope; data carries the field errors.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return writeEnvelope(c, http.StatusBadRequest, data)
}

// AppErrorResponse maps an application error onto the envelope, falling back
// to a generic 500 for anything that is not an AppError.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return writeEnvelope(c, appErr.Status, []*AppError{appErr})
	}
	return writeEnvelope(c, http.StatusInternalServerError, "something went wrong")
}
