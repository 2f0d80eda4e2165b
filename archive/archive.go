// Package archive uploads finalized run artifacts to S3-compatible
// object storage. Strictly post-run: nothing here touches the
// acquisition path.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/biolumen/lumacq/log"
	"github.com/biolumen/lumacq/types"
)

// Config holds configuration for the artifact archive.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. MinIO on the lab network). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required archive configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("archive bucket is required")
	}
	return nil
}

// objectPutter is the slice of the S3 API the uploader needs.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ objectPutter = (*s3.Client)(nil)

// Uploader copies finalized artifacts into the archive bucket, keyed by
// run so every run's stacks and metadata land under one prefix.
type Uploader struct {
	client objectPutter
	cfg    Config
	logger *log.Logger
}

// NewUploader builds an uploader against real S3.
// Uses AWS SDK default credential chain (env vars, shared config, IAM role).
func NewUploader(ctx context.Context, cfg Config, logger *log.Logger) (*Uploader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Uploader{
		client: s3.NewFromConfig(awsConfig, s3Opts...),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// newUploaderWithClient wires a pre-built client; used by tests.
func newUploaderWithClient(client objectPutter, cfg Config, logger *log.Logger) *Uploader {
	return &Uploader{client: client, cfg: cfg, logger: logger}
}

// UploadRun copies every artifact plus the metadata sidecar to the
// archive and returns the object keys written. Files are uploaded one
// at a time; the first failure aborts so a partial archive is obvious
// from the missing keys.
func (u *Uploader) UploadRun(ctx context.Context, meta *types.RunMeta, artifacts []types.ArtifactInfo, metadataPath string) ([]string, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(artifacts)+1)
	for _, a := range artifacts {
		paths = append(paths, a.Path)
	}
	if metadataPath != "" {
		paths = append(paths, metadataPath)
	}

	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		key := u.objectKey(meta, p)
		if err := u.putFile(ctx, key, p); err != nil {
			return keys, fmt.Errorf("archive %s: %w", filepath.Base(p), err)
		}
		keys = append(keys, key)
		if u.logger != nil {
			u.logger.Info("artifact archived", map[string]any{
				"bucket": u.cfg.Bucket,
				"key":    key,
			})
		}
	}
	return keys, nil
}

// objectKey builds {prefix/}{run_id}/{basename}.
func (u *Uploader) objectKey(meta *types.RunMeta, localPath string) string {
	return path.Join(u.cfg.Prefix, meta.RunID, filepath.Base(localPath))
}

func (u *Uploader) putFile(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &u.cfg.Bucket,
		Key:    &key,
		Body:   f,
	})
	return err
}
