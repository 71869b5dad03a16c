// Package drive stores user attachments in an external object store.
package drive

import (
	"context"
	"errors"

	"github.com/charlesng35/gatekeep/internal/models"
	apperrors "github.com/charlesng35/gatekeep/pkg/errors"
)

// ErrStorageDisabled is wrapped by every Disabled operation.
var ErrStorageDisabled = errors.New("drive: storage disabled")

// File is an attachment buffered in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Storage uploads and deletes attachments. Failures are *errors.AppError values.
type Storage interface {
	Upload(ctx context.Context, file File) (*models.Picture, error)
	Delete(ctx context.Context, fileID string) error
}

// Disabled rejects every operation. It is wired when no credentials are configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, File) (*models.Picture, error) {
	return nil, apperrors.ErrUploadFailed.WithMessage("File storage is not configured").WithInternal(ErrStorageDisabled)
}

func (Disabled) Delete(context.Context, string) error {
	return apperrors.ErrExternalService.WithMessage("File storage is not configured").WithInternal(ErrStorageDisabled)
}
