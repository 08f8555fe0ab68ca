package cloudinary

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// Client wraps Cloudinary uploads for report assets: cover images served
// publicly and document files served through the download endpoint.
type Client interface {
	UploadCover(ctx context.Context, file io.Reader, publicID string) (url string, err error)
	UploadDocument(ctx context.Context, file io.Reader, publicID string) (url string, err error)
}

// Cover image optimization for catalog pages.
const (
	coverEager = "q_auto,f_auto,w_600,c_fill"
	coverWidth = 600
)

var eagerAsyncFalse = false

// BuildCoverURL returns a Cloudinary delivery URL with the standard cover
// transformations applied, for public IDs uploaded earlier.
func BuildCoverURL(cloudName, publicID string) string {
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/q_auto,f_auto,w_%d,c_fill/%s",
		cloudName, coverWidth, publicID)
}

type clientImpl struct {
	cloudName string
	uploader  *uploader.API
}

func (c *clientImpl) UploadCover(ctx context.Context, file io.Reader, publicID string) (string, error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:     "report-covers",
		PublicID:   publicID,
		Eager:      coverEager,
		EagerAsync: &eagerAsyncFalse,
	})
	if err != nil {
		return "", err
	}
	if len(result.Eager) > 0 {
		return result.Eager[0].SecureURL, nil
	}
	return result.SecureURL, nil
}

// UploadDocument stores a report file (PDF) as a raw asset so Cloudinary does
// not try to transform it.
func (c *clientImpl) UploadDocument(ctx context.Context, file io.Reader, publicID string) (string, error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:       "report-files",
		PublicID:     publicID,
		ResourceType: "raw",
	})
	if err != nil {
		return "", err
	}
	return result.SecureURL, nil
}

// NewClientFromParams builds a Client from Cloudinary credentials.
func NewClientFromParams(cloudName, apiKey, apiSecret string) (Client, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &clientImpl{cloudName: cloudName, uploader: up}, nil
}
