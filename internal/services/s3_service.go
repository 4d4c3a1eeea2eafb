package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/logging"
	"github.com/carshot/backend/internal/config"
)

// S3Service talks to the S3-compatible gallery bucket. A nil *S3Service
// means object storage is not configured and callers fall back to the
// local assets directory.
type S3Service struct {
	client *s3.Client
	cfg    *config.Config
}

// NewS3Service builds the gallery bucket client. Returns nil when no
// endpoint is configured so the service degrades to local storage.
func NewS3Service(cfg *config.Config) (*S3Service, error) {
	if cfg.GalleryS3Endpoint == "" && cfg.GalleryS3AccessKeyID == "" {
		return nil, nil
	}
	client, err := buildClient(cfg.GalleryS3Endpoint, cfg.GalleryS3Region, cfg.GalleryS3AccessKeyID, cfg.GalleryS3SecretAccessKey, cfg.GalleryS3UsePathStyle)
	if err != nil {
		return nil, err
	}
	return &S3Service{client: client, cfg: cfg}, nil
}

func buildClient(endpoint, region, key, secret string, pathStyle bool) (*s3.Client, error) {
	resolver := awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
		func(service, rgn string, options ...interface{}) (aws.Endpoint, error) {
			if endpoint != "" {
				return aws.Endpoint{URL: endpoint, SigningRegion: region}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		}))
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		resolver,
		awsconfig.WithLogger(logging.NewStandardLogger(nil)),
	)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = pathStyle
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
	})
	return client, nil
}

// Upload streams an object into the gallery bucket.
func (s *S3Service) Upload(ctx context.Context, key string, body io.Reader, ctype string) error {
	uploader := manager.NewUploader(s.client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &s.cfg.GalleryBucket,
		Key:         &key,
		Body:        body,
		ContentType: &ctype,
		ACL:         s3types.ObjectCannedACLPrivate,
	}, func(u *manager.Uploader) { u.PartSize = 10 * 1024 * 1024 })
	return err
}

// Download fetches an object into memory.
func (s *S3Service) Download(ctx context.Context, key string) (*manager.WriteAtBuffer, error) {
	downloader := manager.NewDownloader(s.client)
	buf := manager.NewWriteAtBuffer([]byte{})
	_, err := downloader.Download(ctx, buf, &s3.GetObjectInput{Bucket: &s.cfg.GalleryBucket, Key: &key})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Delete removes an object from the gallery bucket.
func (s *S3Service) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.cfg.GalleryBucket,
		Key:    &key,
	})
	return err
}

// PresignGet returns a temporary download URL for an object.
func (s *S3Service) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	presigner := s3.NewPresignClient(s.client)
	out, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: &s.cfg.GalleryBucket, Key: &key}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

// ListKeys pages through all object keys under a prefix.
func (s *S3Service) ListKeys(ctx context.Context, prefix string, max int32) ([]string, error) {
	keys := []string{}
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.cfg.GalleryBucket,
			Prefix:            &prefix,
			ContinuationToken: token,
			MaxKeys:           aws.Int32(max),
		})
		if err != nil {
			return nil, err
		}
		for _, o := range out.Contents {
			keys = append(keys, *o.Key)
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	return keys, nil
}

// ObjectURL builds the direct (unsigned) URL of an object. Slashes in
// the key separate path segments and must survive escaping.
func (s *S3Service) ObjectURL(key string) string {
	if e := s.client.Options().BaseEndpoint; e != nil {
		u := url.URL{Path: "/" + s.cfg.GalleryBucket + "/" + key}
		return strings.TrimRight(*e, "/") + u.EscapedPath()
	}
	// No custom endpoint means plain AWS, virtual-hosted style.
	u := url.URL{Path: "/" + key}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com%s", s.cfg.GalleryBucket, s.cfg.GalleryS3Region, u.EscapedPath())
}
