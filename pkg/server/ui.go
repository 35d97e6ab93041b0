package server

import (
	"net/http"
	"os"

	"filesvc/pkg/log"

	"github.com/labstack/echo/v4"
)

const uiPrefix = "/ui"

// mountUI serves the static browser client when its directory exists.
func (srv *Server) mountUI() {
	if srv.uiDir == "" {
		return
	}

	info, err := os.Stat(srv.uiDir)
	if err != nil || !info.IsDir() {
		log.Info().Str("ui_dir", srv.uiDir).Msg("UI directory not found, browser client disabled")
		return
	}

	srv.echo.Static(uiPrefix, srv.uiDir)
	srv.echo.GET("/", func(ctx echo.Context) error {
		return ctx.Redirect(http.StatusFound, uiPrefix+"/")
	})
	log.Debug().Str("ui_dir", srv.uiDir).Msg("Browser client mounted")
}
