package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ruteri/dice-device-identity/interfaces"
)

// S3Backend publishes artifacts to Amazon S3 or a compatible service.
// Reads use anonymous access so public buckets work without credentials.
type S3Backend struct {
	client         *s3.S3
	writeClient    *s3.S3
	bucketName     string
	prefix         string
	log            *slog.Logger
	locationURI    string
	hasWriteAccess bool
}

// S3Config holds the connection parameters for an S3 backend.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PathStyle forces path-style addressing, needed by most S3-compatible services.
	PathStyle bool
}

func (c S3Config) locationURI() string {
	var b strings.Builder
	b.WriteString("s3://")
	if c.AccessKey != "" {
		b.WriteString(c.AccessKey)
		b.WriteString(":***@")
	}
	fmt.Fprintf(&b, "%s/%s?region=%s", c.Bucket, strings.Trim(c.Prefix, "/"), c.Region)
	if c.Endpoint != "" {
		fmt.Fprintf(&b, "&endpoint=%s", c.Endpoint)
	}
	return b.String()
}

// NewS3Backend creates a new S3 storage backend.
// Without an access key and secret key the backend is read-only.
func NewS3Backend(cfg S3Config, log *slog.Logger) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: missing S3 bucket", interfaces.ErrInvalidLocationURI)
	}

	baseCfg := aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.AnonymousCredentials,
	}
	if cfg.Endpoint != "" {
		baseCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.PathStyle {
		baseCfg.S3ForcePathStyle = aws.Bool(true)
	}

	baseSess, err := session.NewSession(&baseCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	readClient := s3.New(baseSess)

	hasWriteAccess := cfg.AccessKey != "" && cfg.SecretKey != ""
	writeClient := readClient

	if hasWriteAccess {
		writeCfg := baseCfg.Copy()
		writeCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")

		writeSess, err := session.NewSession(writeCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS write session: %w", err)
		}
		writeClient = s3.New(writeSess)
	} else {
		log.Warn("No S3 credentials provided, publishing will fail unless the bucket is public writable",
			slog.String("bucket", cfg.Bucket))
	}

	return &S3Backend{
		client:         readClient,
		writeClient:    writeClient,
		bucketName:     cfg.Bucket,
		prefix:         strings.Trim(cfg.Prefix, "/"),
		log:            log,
		locationURI:    cfg.locationURI(),
		hasWriteAccess: hasWriteAccess,
	}, nil
}

// Fetch retrieves an artifact by content ID and kind.
// Returns ErrContentNotFound if the object doesn't exist.
func (b *S3Backend) Fetch(ctx context.Context, id interfaces.ContentID, kind interfaces.ArtifactKind) ([]byte, error) {
	start := time.Now()
	key := b.getObjectKey(id, kind)

	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			b.log.Debug("Artifact not found in S3",
				slog.String("bucket", b.bucketName),
				slog.String("key", key),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrContentNotFound
		}

		b.log.Error("Failed to get object from S3",
			slog.String("bucket", b.bucketName),
			slog.String("key", key),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	b.log.Debug("Fetched artifact from S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", key),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store uploads a public artifact with a public-read ACL and returns its content ID.
func (b *S3Backend) Store(ctx context.Context, data []byte, kind interfaces.ArtifactKind) (interfaces.ContentID, error) {
	if err := interfaces.CheckPublishable(kind); err != nil {
		return interfaces.ContentID{}, err
	}

	id := interfaces.ComputeID(data)
	key := b.getObjectKey(id, kind)

	_, err := b.writeClient.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ACL:         aws.String(s3.ObjectCannedACLPublicRead),
		ContentType: aws.String(contentTypeFor(kind)),
	})
	if err != nil {
		if !b.hasWriteAccess {
			return id, fmt.Errorf("failed to upload object to S3 (no write credentials provided): %w", err)
		}
		return id, fmt.Errorf("failed to upload object to S3: %w", err)
	}

	b.log.Debug("Stored artifact in S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", key),
		slog.String("content_id", id.String()))

	return id, nil
}

// Available checks that the bucket can be reached.
func (b *S3Backend) Available(ctx context.Context) bool {
	_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucketName),
	})
	if err != nil {
		b.log.Warn("S3 backend unavailable",
			slog.String("bucket", b.bucketName),
			"err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *S3Backend) Name() string {
	return fmt.Sprintf("s3-%s", b.bucketName)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *S3Backend) LocationURI() string {
	return b.locationURI
}

func (b *S3Backend) getObjectKey(id interfaces.ContentID, kind interfaces.ArtifactKind) string {
	return path.Join(b.prefix, kind.String(), id.String())
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	var rerr awserr.RequestFailure
	if errors.As(err, &rerr) && rerr.StatusCode() == 404 {
		return true
	}
	return false
}

func contentTypeFor(kind interfaces.ArtifactKind) string {
	switch kind {
	case interfaces.CertificateKind:
		return "application/x-pem-file"
	case interfaces.CSRKind:
		return "application/pkcs10"
	case interfaces.ManifestKind:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
