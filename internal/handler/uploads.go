package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/service"
)

// maxUploadBytes caps a single multipart file.
const maxUploadBytes = 20 << 20

// formFile opens the multipart file under field. When optional is set a
// missing file yields nil. The returned close func is never nil.
func formFile(c echo.Context, field string, optional bool) (*service.Upload, func(), error) {
	nop := func() {}
	fh, err := c.FormFile(field)
	if err != nil {
		if optional && errors.Is(err, http.ErrMissingFile) {
			return nil, nop, nil
		}
		return nil, nop, apperr.Invalid(field, "file is required")
	}
	if fh.Size > maxUploadBytes {
		return nil, nop, apperr.Invalid(field, "file exceeds %d bytes", maxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nop, apperr.Invalid(field, "cannot read file")
	}
	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &service.Upload{Filename: fh.Filename, ContentType: ct, Body: f}, func() { _ = f.Close() }, nil
}
