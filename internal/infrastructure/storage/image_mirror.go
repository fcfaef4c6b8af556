// Package storage mirrors profile images to Google Cloud Storage.
package storage

import (
	"bytes"
	"context"
	"net/http"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/oksasatya/go-ddd-user-management/internal/application"
	"github.com/oksasatya/go-ddd-user-management/pkg/helpers"
)

type ImageMirror struct {
	Client *gcs.Client
	Bucket string
	Prefix string
}

func NewImageMirror(client *gcs.Client, bucket, prefix string) *ImageMirror {
	return &ImageMirror{Client: client, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}
}

// ObjectPath is prefix/username/<random>.<ext>, with the extension taken from the sniffed content type.
func (m *ImageMirror) ObjectPath(username, contentType string) string {
	return path.Join(m.Prefix, username, uuid.NewString()+extFor(contentType))
}

func (m *ImageMirror) Mirror(ctx context.Context, username string, data []byte) (string, error) {
	contentType := http.DetectContentType(data)
	return helpers.UploadObject(ctx, m.Client, m.Bucket, m.ObjectPath(username, contentType), contentType, bytes.NewReader(data))
}

func extFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".bin"
}

var _ application.ImageMirror = (*ImageMirror)(nil)
