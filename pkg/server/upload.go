package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"filesvc/pkg/log"
	"filesvc/pkg/manager"

	"github.com/labstack/echo/v4"
)

const uploadField = "file"

// uploadFile streams the "file" part of a multipart body straight to the
// manager. The body is never buffered in memory or spooled to a temp file.
func (srv *Server) uploadFile(ctx echo.Context) error {
	log.Info().Msg("File upload request received")

	reader, err := ctx.Request().MultipartReader()
	if err != nil {
		log.Warn().Err(err).Msg("Upload is not a multipart request")
		return errorJSON(ctx, http.StatusBadRequest, msgFileRequired)
	}

	part, err := nextFilePart(reader)
	if err != nil {
		log.Warn().Err(err).Msg("File parameter is required")
		return errorJSON(ctx, http.StatusBadRequest, msgFileRequired)
	}
	defer func() {
		if err := part.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close upload part")
		}
	}()

	record, err := srv.manager.Upload(ctx.Request().Context(), part.FileName(), part)
	if err != nil {
		var tooLarge manager.TooLargeError
		if errors.As(err, &tooLarge) {
			return errorJSON(ctx, http.StatusBadRequest, tooLarge.Error())
		}
		return errorJSON(ctx, http.StatusInternalServerError, msgInternalError)
	}

	return ctx.JSON(http.StatusOK, record.Response())
}

// nextFilePart skips parts until the upload field. io.EOF if there is none.
func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == uploadField {
			return part, nil
		}
		if _, err := io.Copy(io.Discard, part); err != nil {
			return nil, err
		}
		if err := part.Close(); err != nil {
			return nil, err
		}
	}
}
