// Package s3 archives exported structures in an S3-compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// ContentType is the registered media type for PDB files.
const ContentType = "chemical/x-pdb"

// maxObjectBytes bounds how much of an archived object is read back.
const maxObjectBytes = 64 << 20

// API is the subset of the S3 client the archive needs.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ API = (*s3.Client)(nil)

// Config holds archive parameters.
type Config struct {
	Bucket string
	// Prefix is prepended to every key, e.g. "structures/".
	Prefix string
}

// Archive implements ports.StructureArchive on S3.
type Archive struct {
	client API
	bucket string
	prefix string
	logger *zap.Logger
}

var _ ports.StructureArchive = (*Archive)(nil)

// NewArchive creates an archive. The bucket is required.
func NewArchive(client API, cfg Config, logger *zap.Logger) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	return &Archive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}, nil
}

// NewClientOptions returns S3 client options for a custom endpoint such as
// MinIO or LocalStack.
func NewClientOptions(endpoint string, pathStyle bool) func(*s3.Options) {
	return func(o *s3.Options) {
		if pathStyle {
			o.UsePathStyle = true
		}
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}
}

func (a *Archive) objectKey(key string) string {
	return a.prefix + strings.TrimPrefix(key, "/")
}

// Put uploads text and returns its s3:// URI.
func (a *Archive) Put(ctx context.Context, key, text string) (string, error) {
	if key == "" {
		return "", pkgerrors.NewValidationError("archive key cannot be empty")
	}
	objectKey := a.objectKey(key)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(objectKey),
		Body:          strings.NewReader(text),
		ContentType:   aws.String(ContentType),
		ContentLength: aws.Int64(int64(len(text))),
	})
	if err != nil {
		return "", classify(ctx, err, "archive put")
	}

	a.logger.Debug("Structure archived",
		zap.String("bucket", a.bucket),
		zap.String("key", objectKey),
		zap.Int("bytes", len(text)),
	)
	return fmt.Sprintf("s3://%s/%s", a.bucket, objectKey), nil
}

// Get downloads the text stored under key.
func (a *Archive) Get(ctx context.Context, key string) (string, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.objectKey(key)),
	})
	if err != nil {
		return "", classify(ctx, err, "archive get").WithDetail("key", key)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, maxObjectBytes))
	if err != nil {
		return "", classify(ctx, err, "archive read")
	}
	return string(body), nil
}

func classify(ctx context.Context, err error, operation string) *pkgerrors.AppError {
	if ctxErr := pkgerrors.FromContext(ctx, operation); ctxErr != nil {
		return ctxErr
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return pkgerrors.NewNotFoundError("archived structure")
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return pkgerrors.NewNotFoundError("archived structure")
		case "NoSuchBucket", "AccessDenied":
			return pkgerrors.NewInternalError(operation + " failed").WithCode(apiErr.ErrorCode()).WithCause(err)
		}
	}
	return pkgerrors.NewTransportError(operation+" failed", err)
}
