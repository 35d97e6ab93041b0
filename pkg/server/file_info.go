package server

import (
	"net/http"

	"filesvc/pkg/log"

	"github.com/labstack/echo/v4"
)

func (srv *Server) getFileInfo(ctx echo.Context) error {
	id := ctx.Param("id")
	log.Info().Str("file_id", id).Msg("File info request")

	record, err := srv.manager.Get(ctx.Request().Context(), id)
	if err != nil {
		return lookupError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, record.Response())
}
