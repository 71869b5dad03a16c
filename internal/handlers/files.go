package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeep/internal/drive"
	appErrors "github.com/charlesng35/gatekeep/pkg/errors"
)

const (
	pictureField   = "picture"
	maxPictureSize = 5 << 20
)

var allowedPictureTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// readPicture buffers the optional picture part of a multipart request. It returns nil when
// the request carries no file.
func readPicture(c *gin.Context) (*drive.File, error) {
	if !isMultipart(c) {
		return nil, nil
	}

	header, err := c.FormFile(pictureField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, appErrors.NewBadRequest("Invalid multipart payload").WithInternal(err)
	}
	if header.Size > maxPictureSize {
		return nil, appErrors.NewValidation(pictureField, fmt.Sprintf("picture must be at most %d MiB", maxPictureSize>>20))
	}

	src, err := header.Open()
	if err != nil {
		return nil, appErrors.NewBadRequest("Unable to read picture").WithInternal(err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxPictureSize+1))
	if err != nil {
		return nil, appErrors.NewBadRequest("Unable to read picture").WithInternal(err)
	}
	if len(data) > maxPictureSize {
		return nil, appErrors.NewValidation(pictureField, fmt.Sprintf("picture must be at most %d MiB", maxPictureSize>>20))
	}
	if len(data) == 0 {
		return nil, appErrors.NewValidation(pictureField, "picture must not be empty")
	}

	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if !allowedPictureTypes[contentType] {
		return nil, appErrors.NewValidation(pictureField, "picture must be a JPEG, PNG, GIF or WebP image")
	}

	return &drive.File{Name: header.Filename, ContentType: contentType, Data: data}, nil
}
