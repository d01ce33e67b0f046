package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// ImageStorage defines contract for image storage provider (Cloudinary implementation).
type ImageStorage interface {
	// UploadImage uploads image from reader and returns the secure URL.
	UploadImage(ctx context.Context, r io.Reader, folder, fileName string) (string, error)
	// DeleteImage deletes image from storage using its URL.
	DeleteImage(ctx context.Context, fileURL string) error
	// SignUpload issues credentials for a direct browser upload into folder.
	SignUpload(folder string) (*UploadSignature, error)
}

type UploadSignature struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	APIKey    string `json:"api_key"`
	CloudName string `json:"cloud_name"`
	Folder    string `json:"folder,omitempty"`
}

type Options struct {
	CloudName     string
	APIKey        string
	APISecret     string
	DefaultFolder string
}

type cloudinaryStorage struct {
	cld           *cloudinary.Cloudinary
	apiSecret     string
	defaultFolder string
	now           func() time.Time
}

// NewCloudinaryStorage creates Cloudinary-backed implementation of ImageStorage.
// With empty credentials it falls back to CLOUDINARY_URL from the environment.
func NewCloudinaryStorage(opts Options) (ImageStorage, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)
	if opts.CloudName != "" && opts.APIKey != "" && opts.APISecret != "" {
		cld, err = cloudinary.NewFromParams(opts.CloudName, opts.APIKey, opts.APISecret)
	} else {
		cld, err = cloudinary.New()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}

	cld.Config.URL.Secure = true

	secret := opts.APISecret
	if secret == "" {
		secret = cld.Config.Cloud.APISecret
	}

	return &cloudinaryStorage{
		cld:           cld,
		apiSecret:     secret,
		defaultFolder: opts.DefaultFolder,
		now:           time.Now,
	}, nil
}

func (s *cloudinaryStorage) UploadImage(ctx context.Context, r io.Reader, folder, fileName string) (string, error) {
	if s == nil || s.cld == nil {
		return "", fmt.Errorf("cloudinary storage is not initialized")
	}

	if folder == "" {
		folder = s.defaultFolder
	}

	publicID := fmt.Sprintf("%d-%s", time.Now().UnixNano(), strings.TrimSuffix(fileName, filepath.Ext(fileName)))

	params := uploader.UploadParams{
		Folder:         folder,
		UseFilename:    api.Bool(true),
		UniqueFilename: api.Bool(true),
		PublicID:       publicID,
		Overwrite:      api.Bool(false),
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".gif", ".webp":
		params.Format = "webp"
		params.Transformation = "q_auto"
	}

	resp, err := s.cld.Upload.Upload(ctx, r, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload image to cloudinary: %w", err)
	}

	if resp.SecureURL == "" {
		return "", fmt.Errorf("cloudinary upload succeeded but secure URL is empty")
	}

	return resp.SecureURL, nil
}

func (s *cloudinaryStorage) DeleteImage(ctx context.Context, fileURL string) error {
	if s == nil || s.cld == nil {
		return fmt.Errorf("cloudinary storage is not initialized")
	}

	publicID := ExtractPublicID(fileURL)
	if publicID == "" {
		return fmt.Errorf("could not extract public ID from URL: %s", fileURL)
	}

	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:   publicID,
		Invalidate: api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image from cloudinary: %w", err)
	}

	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy api returned result: %s", resp.Result)
	}

	return nil
}

func (s *cloudinaryStorage) SignUpload(folder string) (*UploadSignature, error) {
	if s == nil || s.cld == nil || s.apiSecret == "" {
		return nil, fmt.Errorf("cloudinary storage is not initialized")
	}

	if folder == "" {
		folder = s.defaultFolder
	}

	ts := s.now().Unix()
	params := url.Values{}
	params.Set("timestamp", strconv.FormatInt(ts, 10))
	if folder != "" {
		params.Set("folder", folder)
	}

	signature, err := api.SignParameters(params, s.apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign upload parameters: %w", err)
	}

	return &UploadSignature{
		Signature: signature,
		Timestamp: ts,
		APIKey:    s.cld.Config.Cloud.APIKey,
		CloudName: s.cld.Config.Cloud.CloudName,
		Folder:    folder,
	}, nil
}

// IsHosted reports whether fileURL points at Cloudinary's delivery domain.
func IsHosted(fileURL string) bool {
	u, err := url.Parse(fileURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Host, "res.cloudinary.com")
}

// ExtractPublicID attempts to extract the public ID from a Cloudinary URL.
// Example: https://res.cloudinary.com/demo/image/upload/v123456789/folder/sample.jpg -> folder/sample
func ExtractPublicID(fileURL string) string {
	u, err := url.Parse(fileURL)
	if err != nil {
		return ""
	}

	parts := strings.Split(u.Path, "/")
	uploadIndex := -1
	for i, p := range parts {
		if p == "upload" {
			uploadIndex = i
			break
		}
	}

	if uploadIndex == -1 || uploadIndex+1 >= len(parts) {
		return ""
	}

	relevantParts := parts[uploadIndex+1:]

	// versions look like v1712345678
	if len(relevantParts) > 0 && isVersionSegment(relevantParts[0]) {
		relevantParts = relevantParts[1:]
	}

	if len(relevantParts) == 0 {
		return ""
	}

	publicIDWithExt := strings.Join(relevantParts, "/")
	return strings.TrimSuffix(publicIDWithExt, filepath.Ext(publicIDWithExt))
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.ParseUint(s[1:], 10, 64)
	return err == nil
}
