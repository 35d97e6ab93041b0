package server

import (
	"context"
	"net/http"

	"filesvc/pkg/log"
	"filesvc/pkg/models"

	"github.com/labstack/echo/v4"
)

const (
	statusOK          = "ok"
	statusUnavailable = "unavailable"
)

// health reports ok when the metadata database answers a ping.
func (srv *Server) health(ctx echo.Context) error {
	if srv.database != nil {
		pingCtx, cancel := context.WithTimeout(ctx.Request().Context(), healthTimeout)
		defer cancel()

		if err := srv.database.Ping(pingCtx); err != nil {
			log.Error().Err(err).Msg("Health check failed")
			return ctx.JSON(http.StatusServiceUnavailable, models.HealthResponse{Status: statusUnavailable})
		}
	}

	return ctx.JSON(http.StatusOK, models.HealthResponse{Status: statusOK})
}
