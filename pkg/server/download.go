package server

import (
	"errors"
	"net/http"

	"filesvc/pkg/log"
	"filesvc/pkg/manager"
	"filesvc/pkg/metrics"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
)

const defaultContentType = "application/octet-stream"

// downloadFile streams the stored bytes unchanged as an attachment named
// after the original upload.
func (srv *Server) downloadFile(ctx echo.Context) error {
	id := ctx.Param("id")
	log.Info().Str("file_id", id).Msg("File download request")

	record, err := srv.manager.Open(ctx.Request().Context(), id)
	if err != nil {
		var notFound manager.NotFoundError
		if errors.As(err, &notFound) {
			srv.metrics.Download(metrics.OutcomeNotFound)
		}
		return lookupError(ctx, err)
	}

	contentType := defaultContentType
	if mtype, err := mimetype.DetectFile(record.Path); err != nil {
		log.Warn().Err(err).Str("file_id", id).Msg("Failed to detect content type")
	} else {
		contentType = mtype.String()
	}

	header := ctx.Response().Header()
	header.Set(echo.HeaderContentType, contentType)

	log.Info().Str("file_id", id).Str("content_type", contentType).Msg("Serving file download")
	if err := ctx.Attachment(record.Path, record.Name); err != nil {
		header.Del(echo.HeaderContentType)
		header.Del(echo.HeaderContentDisposition)
		if errors.Is(err, echo.ErrNotFound) {
			srv.metrics.Download(metrics.OutcomeNotFound)
			log.Warn().Str("file_id", id).Msg("Stored file vanished before it could be served")
			return errorJSON(ctx, http.StatusNotFound, msgFileNotFound)
		}
		return err
	}

	srv.metrics.Download(metrics.OutcomeServed)
	return nil
}
