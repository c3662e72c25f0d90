// Package evidence manages file evidence attached to mitigation steps:
// presigned upload/download URLs against S3-compatible object storage and
// descriptor bookkeeping for the workflow snapshots.
package evidence

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/complyard/grc-engine/pkg/workflow"
)

// DefaultExpiry is how long presigned URLs stay valid.
const DefaultExpiry = 15 * time.Minute

// Config holds the object-storage settings for evidence files.
type Config struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	KeyID        string `yaml:"key_id"`
	Secret       string `yaml:"secret"`
	Bucket       string `yaml:"bucket"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Complete reports whether the config carries everything needed to presign.
func (c Config) Complete() bool {
	return c.Endpoint != "" && c.Region != "" && c.KeyID != "" && c.Secret != "" && c.Bucket != ""
}

// LoadConfigFile reads the object-storage settings from a YAML file. Used
// when credentials come from a mounted secret instead of the environment.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read evidence config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse evidence config: %w", err)
	}
	return cfg, nil
}

// Presigner generates presigned GET and PUT URLs for evidence objects.
type Presigner interface {
	PresignUpload(ctx context.Context, key string, expiry time.Duration) (string, error)
	PresignDownload(ctx context.Context, key string, expiry time.Duration) (string, error)
	Bucket() string
}

// Compile-time check: S3Presigner implements Presigner.
var _ Presigner = (*S3Presigner)(nil)

// S3Presigner generates presigned URLs using the AWS SDK v2. Path-style
// addressing is on by default so S3-compatible stores work out of the box.
type S3Presigner struct {
	presignClient *s3.PresignClient
	bucket        string
}

// NewS3Presigner creates a presigner from the evidence config.
func NewS3Presigner(cfg Config) (*S3Presigner, error) {
	if !cfg.Complete() {
		return nil, fmt.Errorf("evidence storage config is incomplete")
	}

	endpoint := cfg.Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	s3Client := s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.KeyID, cfg.Secret, "",
		),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: cfg.UsePathStyle,
	})

	return &S3Presigner{
		presignClient: s3.NewPresignClient(s3Client),
		bucket:        cfg.Bucket,
	}, nil
}

// PresignUpload generates a presigned PUT URL for an evidence object.
func (p *S3Presigner) PresignUpload(ctx context.Context, key string, expiry time.Duration) (string, error) {
	result, err := p.presignClient.PresignPutObject(ctx,
		&s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(key),
			ContentType: aws.String("application/octet-stream"),
		},
		s3.WithPresignExpires(expiry),
	)
	if err != nil {
		return "", fmt.Errorf("presign PutObject for %q/%q: %w", p.bucket, key, err)
	}
	return result.URL, nil
}

// PresignDownload generates a presigned GET URL for an evidence object.
func (p *S3Presigner) PresignDownload(ctx context.Context, key string, expiry time.Duration) (string, error) {
	result, err := p.presignClient.PresignGetObject(ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(expiry),
	)
	if err != nil {
		return "", fmt.Errorf("presign GetObject for %q/%q: %w", p.bucket, key, err)
	}
	return result.URL, nil
}

// Bucket returns the configured bucket name.
func (p *S3Presigner) Bucket() string {
	return p.bucket
}

// ObjectKey builds the storage key for an evidence file. Keys are scoped by
// tenant and risk instance so tenants can never collide.
func ObjectKey(tenantID string, instanceID int64, storedName string) string {
	return path.Join("evidence", tenantID, fmt.Sprintf("ri-%d", instanceID), storedName)
}

// StoredName derives a collision-free object name from the original filename,
// preserving the extension.
func StoredName(fileName string) string {
	ext := path.Ext(fileName)
	return uuid.New().String() + ext
}

// ParseObjectURL extracts bucket and key from an "s3://bucket/key" URI.
func ParseObjectURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse object URL %q: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("expected s3:// scheme, got %q in %q", u.Scheme, raw)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("empty key in object URL %q", raw)
	}
	return bucket, key, nil
}

// ValidateDescriptor checks that a file descriptor destined for a snapshot
// has the fields downstream consumers rely on.
func ValidateDescriptor(fd workflow.FileDescriptor) error {
	if fd.FileName == "" {
		return fmt.Errorf("evidence descriptor missing fileName")
	}
	if fd.StoredName == "" {
		return fmt.Errorf("evidence descriptor missing stored_name")
	}
	if fd.Size < 0 {
		return fmt.Errorf("evidence descriptor has negative size %d", fd.Size)
	}
	return nil
}
