package server

import (
	"net/http"

	"filesvc/pkg/models"

	"github.com/labstack/echo/v4"
)

func (srv *Server) listFiles(ctx echo.Context) error {
	records, err := srv.manager.List(ctx.Request().Context())
	if err != nil {
		return errorJSON(ctx, http.StatusInternalServerError, msgInternalError)
	}

	files := make([]models.FileResponse, 0, len(records))
	for _, record := range records {
		files = append(files, record.Response())
	}
	return ctx.JSON(http.StatusOK, files)
}
