package server

import (
	"errors"
	"net/http"

	"filesvc/pkg/manager"

	"github.com/labstack/echo/v4"
)

// lookupError maps a manager lookup failure to its response.
func lookupError(ctx echo.Context, err error) error {
	var notFound manager.NotFoundError
	if errors.As(err, &notFound) {
		return errorJSON(ctx, http.StatusNotFound, msgFileNotFound)
	}
	return errorJSON(ctx, http.StatusInternalServerError, msgInternalError)
}
