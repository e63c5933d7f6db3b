package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	apperrors "github.com/opendots/opendots-backend/errors"
	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/store"
	"github.com/opendots/opendots-backend/types"
)

// objectAPI is the subset of *s3.Client used for profile images.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// Image is an object read back from the bucket.
type Image struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	ETag          string
}

// ImageStorage stores profile images in Cloudflare R2 through its S3 API.
type ImageStorage struct {
	client    objectAPI
	bucket    string
	publicURL string
	newID     func() string
}

// NewImageStorage creates an R2-backed image store. Images are served back
// through publicURL + "/images/<key>".
func NewImageStorage(ctx context.Context, accountID, bucket, accessKeyID, secretAccessKey, publicURL string) (*ImageStorage, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load r2 config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return newImageStorage(client, bucket, publicURL), nil
}

func newImageStorage(client objectAPI, bucket, publicURL string) *ImageStorage {
	return &ImageStorage{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		newID:     uuid.NewString,
	}
}

// Upload stores an image under <userID>/<8 char id>-<sanitized filename>.
func (s *ImageStorage) Upload(ctx context.Context, userID, filename, contentType string, body io.Reader, size int64) (*types.UploadResult, error) {
	if userID == "" {
		return nil, apperrors.AuthenticationFailed("Unauthorized")
	}
	key := ImageKey(userID, s.newID()[:8], filename)
	if err := validateKey(key); err != nil {
		return nil, apperrors.ValidationFailed("Invalid file name", err.Error())
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		CacheControl:  aws.String(imageCacheControl),
	})
	if err != nil {
		logger.GetLogger().Errorw("Failed to upload image to R2", "user_id", userID, "key", key, "error", err)
		return nil, apperrors.Upstream(fmt.Errorf("r2 put object failed: %w", err), "Failed to upload image")
	}

	return &types.UploadResult{
		Success: true,
		URL:     ImageURL(s.publicURL, key, 0, 0),
		Key:     key,
	}, nil
}

// Get opens the image stored under key. store.ErrNotFound when absent.
func (s *ImageStorage) Get(ctx context.Context, key string) (*Image, error) {
	if err := validateKey(key); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("image %s: %w", key, store.ErrNotFound)
		}
		return nil, fmt.Errorf("r2 get object failed: %w", err)
	}

	img := &Image{
		Body:        out.Body,
		ContentType: aws.ToString(out.ContentType),
		ETag:        aws.ToString(out.ETag),
	}
	if out.ContentLength != nil {
		img.ContentLength = *out.ContentLength
	}
	if img.ContentType == "" {
		img.ContentType = contentTypeForKey(key)
	}
	return img, nil
}

const imageCacheControl = "public, max-age=31536000"

// ImageKey builds the object key for an upload.
func ImageKey(userID, uniqueID, filename string) string {
	return fmt.Sprintf("%s/%s-%s", userID, uniqueID, SanitizeFilename(filename))
}

// SanitizeFilename drops every character outside [a-zA-Z0-9-_.].
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "")
}

// ImageURL is the public URL of key, with optional resize hints.
func ImageURL(base, key string, width, height int) string {
	u := strings.TrimRight(base, "/") + "/images/" + key
	q := url.Values{}
	if width > 0 {
		q.Set("width", strconv.Itoa(width))
	}
	if height > 0 {
		q.Set("height", strconv.Itoa(height))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// validateKey rejects storage keys containing path traversal segments.
func validateKey(key string) error {
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." || segment == "." {
			return errors.New("path traversal detected in storage key")
		}
	}
	return nil
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
