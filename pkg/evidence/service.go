package evidence

import (
	"context"
	"fmt"
	"time"

	"github.com/complyard/grc-engine/pkg/workflow"
)

// UploadGrant is what a client needs to upload one evidence file.
type UploadGrant struct {
	UploadURL  string                  `json:"uploadUrl"`
	Descriptor workflow.FileDescriptor `json:"descriptor"`
	ExpiresAt  time.Time               `json:"expiresAt"`
}

// Service issues presigned upload grants and download links for evidence
// files. When no presigner is configured the service degrades to descriptor
// validation only.
type Service struct {
	presigner Presigner
	expiry    time.Duration
	now       func() time.Time
}

// NewService creates an evidence service. presigner may be nil.
func NewService(presigner Presigner, expiry time.Duration) *Service {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Service{presigner: presigner, expiry: expiry, now: time.Now}
}

// Enabled reports whether presigned uploads are available.
func (s *Service) Enabled() bool { return s.presigner != nil }

// GrantUpload issues a presigned PUT URL for a new evidence file attached to
// the given risk instance, plus the descriptor the caller should submit with
// the mitigation step once the upload completes.
func (s *Service) GrantUpload(ctx context.Context, tenantID string, instanceID int64, fileName string, size int64) (*UploadGrant, error) {
	if s.presigner == nil {
		return nil, fmt.Errorf("evidence uploads are not configured")
	}
	if fileName == "" {
		return nil, fmt.Errorf("fileName is required")
	}
	if size < 0 {
		return nil, fmt.Errorf("size must not be negative")
	}

	storedName := StoredName(fileName)
	key := ObjectKey(tenantID, instanceID, storedName)

	uploadURL, err := s.presigner.PresignUpload(ctx, key, s.expiry)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	return &UploadGrant{
		UploadURL: uploadURL,
		Descriptor: workflow.FileDescriptor{
			AWSFileLink: fmt.Sprintf("s3://%s/%s", s.presigner.Bucket(), key),
			FileName:    fileName,
			StoredName:  storedName,
			FileID:      storedName,
			Size:        size,
			UploadedAt:  now.Format(time.RFC3339),
		},
		ExpiresAt: now.Add(s.expiry),
	}, nil
}

// DownloadURL resolves a descriptor's stored link to a presigned GET URL.
func (s *Service) DownloadURL(ctx context.Context, fd workflow.FileDescriptor) (string, error) {
	if s.presigner == nil {
		return "", fmt.Errorf("evidence downloads are not configured")
	}
	if err := ValidateDescriptor(fd); err != nil {
		return "", err
	}

	_, key, err := ParseObjectURL(fd.AWSFileLink)
	if err != nil {
		return "", err
	}
	return s.presigner.PresignDownload(ctx, key, s.expiry)
}
