package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"draftmark/internal/config"
	"draftmark/internal/review"
)

// S3API is the subset of the S3 client used by S3Archive.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Archive stores snapshots as objects under
// <prefix>/<version id, path escaped>/<revision><ext>.
type S3Archive struct {
	client S3API
	bucket string
	prefix string
	codec  *Codec
}

// NewS3Archive builds an S3 client from cfg. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain.
func NewS3Archive(ctx context.Context, cfg config.ArchiveConfig, codec *Codec) (*S3Archive, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3ArchiveWithClient(client, cfg.S3Bucket, cfg.S3Prefix, codec), nil
}

// NewS3ArchiveWithClient wraps an existing client.
func NewS3ArchiveWithClient(client S3API, bucket, prefix string, codec *Codec) *S3Archive {
	return &S3Archive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		codec:  codec,
	}
}

func (a *S3Archive) versionPrefix(versionID string) string {
	return path.Join(a.prefix, versionDir(versionID)) + "/"
}

func (a *S3Archive) key(versionID string, revision int) string {
	return a.versionPrefix(versionID) + a.codec.objectName(revision)
}

func (a *S3Archive) Put(ctx context.Context, s *review.Snapshot) error {
	data, err := a.codec.Encode(s)
	if err != nil {
		return err
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(a.key(s.VersionID, s.RevisionNumber)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(a.codec.ContentType()),
	})
	if err != nil {
		return fmt.Errorf("putting snapshot object: %w", err)
	}
	return nil
}

func (a *S3Archive) Get(ctx context.Context, versionID string, revision int) (*review.Snapshot, error) {
	return a.getKey(ctx, a.key(versionID, revision))
}

func (a *S3Archive) getKey(ctx context.Context, key string) (*review.Snapshot, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting snapshot object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot object: %w", err)
	}
	return a.codec.Decode(data)
}

func (a *S3Archive) List(ctx context.Context, versionID string) ([]*review.Snapshot, error) {
	prefix := a.versionPrefix(versionID)
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	})

	var out []*review.Snapshot
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing snapshot objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if _, ok := a.codec.parseRevision(strings.TrimPrefix(key, prefix)); !ok {
				continue
			}
			s, err := a.getKey(ctx, key)
			if err != nil {
				return nil, err
			}
			if s != nil {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// Compile-time check that S3Archive implements review.ArchiveBackend
var _ review.ArchiveBackend = (*S3Archive)(nil)
