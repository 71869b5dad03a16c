package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/charlesng35/gatekeep/internal/models"
	apperrors "github.com/charlesng35/gatekeep/pkg/errors"
	"github.com/charlesng35/gatekeep/pkg/logger"
	"github.com/charlesng35/gatekeep/pkg/metrics"
)

const downloadBase = "https://drive.google.com/uc"

// Config selects the service account and target folder.
type Config struct {
	CredentialsFile string
	CredentialsJSON string
	FolderID        string
}

// GoogleDrive implements Storage on the Google Drive v3 API.
type GoogleDrive struct {
	files       *gdrive.FilesService
	permissions *gdrive.PermissionsService
	folderID    string
	log         *zap.Logger
}

// NewGoogleDrive authenticates with service-account credentials.
func NewGoogleDrive(ctx context.Context, cfg Config) (*GoogleDrive, error) {
	creds := []byte(cfg.CredentialsJSON)
	if len(creds) == 0 && cfg.CredentialsFile != "" {
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("drive: read credentials: %w", err)
		}
		creds = raw
	}
	if len(creds) == 0 {
		return nil, errors.New("drive: credentials are required")
	}

	jwtCfg, err := google.JWTConfigFromJSON(creds, gdrive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("drive: parse credentials: %w", err)
	}

	return NewGoogleDriveWithOptions(ctx, cfg.FolderID, option.WithHTTPClient(jwtCfg.Client(ctx)))
}

// NewGoogleDriveWithOptions builds the client from explicit API options.
func NewGoogleDriveWithOptions(ctx context.Context, folderID string, opts ...option.ClientOption) (*GoogleDrive, error) {
	svc, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive: new service: %w", err)
	}
	return &GoogleDrive{
		files:       svc.Files,
		permissions: svc.Permissions,
		folderID:    strings.TrimSpace(folderID),
		log:         logger.WithModule("drive"),
	}, nil
}

// Upload stores the file, opens it to anyone holding the link and returns its references.
func (g *GoogleDrive) Upload(ctx context.Context, file File) (*models.Picture, error) {
	meta := &gdrive.File{Name: file.Name, MimeType: file.ContentType}
	if g.folderID != "" {
		meta.Parents = []string{g.folderID}
	}

	created, err := g.files.Create(meta).
		Media(bytes.NewReader(file.Data), googleapi.ContentType(file.ContentType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return nil, g.uploadFailed(err)
	}

	_, err = g.permissions.Create(created.Id, &gdrive.Permission{Type: "anyone", Role: "reader"}).
		Context(ctx).
		Do()
	if err != nil {
		g.discard(ctx, created.Id)
		return nil, g.uploadFailed(err)
	}

	fetched, err := g.files.Get(created.Id).Fields("id", "webViewLink").Context(ctx).Do()
	if err != nil {
		g.discard(ctx, created.Id)
		return nil, g.uploadFailed(err)
	}

	metrics.AttachmentOperations.WithLabelValues("upload", "success").Inc()
	return &models.Picture{
		FileID:        created.Id,
		ShareableLink: fetched.WebViewLink,
		DownloadLink:  DownloadLink(created.Id),
	}, nil
}

// Delete removes the file. A missing file counts as deleted.
func (g *GoogleDrive) Delete(ctx context.Context, fileID string) error {
	if strings.TrimSpace(fileID) == "" {
		return nil
	}
	err := g.files.Delete(fileID).Context(ctx).Do()
	if err != nil && !googleapi.IsNotModified(err) && !isNotFound(err) {
		metrics.AttachmentOperations.WithLabelValues("delete", "failure").Inc()
		return apperrors.ErrExternalService.WithMessage("Failed to delete file").WithInternal(err)
	}
	metrics.AttachmentOperations.WithLabelValues("delete", "success").Inc()
	return nil
}

// DownloadLink synthesises a direct-download URL for a file id.
func DownloadLink(fileID string) string {
	q := url.Values{}
	q.Set("export", "download")
	q.Set("id", fileID)
	return downloadBase + "?" + q.Encode()
}

func (g *GoogleDrive) uploadFailed(err error) error {
	metrics.AttachmentOperations.WithLabelValues("upload", "failure").Inc()
	return apperrors.ErrUploadFailed.WithInternal(err)
}

func (g *GoogleDrive) discard(ctx context.Context, fileID string) {
	if err := g.files.Delete(fileID).Context(ctx).Do(); err != nil {
		g.log.Warn("failed to remove partially uploaded file", zap.String("file_id", fileID), zap.Error(err))
	}
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 404
}
