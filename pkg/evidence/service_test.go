package evidence

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyard/grc-engine/pkg/workflow"
)

func TestServiceGrantUpload(t *testing.T) {
	p, err := NewS3Presigner(testConfig())
	require.NoError(t, err)

	svc := NewService(p, time.Minute)
	require.True(t, svc.Enabled())

	grant, err := svc.GrantUpload(context.Background(), "acme", 7, "report.pdf", 2048)
	require.NoError(t, err)

	assert.Contains(t, grant.UploadURL, "X-Amz-Signature")
	assert.Equal(t, "report.pdf", grant.Descriptor.FileName)
	assert.True(t, strings.HasSuffix(grant.Descriptor.StoredName, ".pdf"))
	assert.Equal(t, int64(2048), grant.Descriptor.Size)
	assert.True(t, strings.HasPrefix(grant.Descriptor.AWSFileLink, "s3://grc-evidence/evidence/acme/ri-7/"))
	assert.NotEmpty(t, grant.Descriptor.UploadedAt)
	assert.NoError(t, ValidateDescriptor(grant.Descriptor))
}

func TestServiceGrantUploadValidation(t *testing.T) {
	p, err := NewS3Presigner(testConfig())
	require.NoError(t, err)
	svc := NewService(p, time.Minute)

	_, err = svc.GrantUpload(context.Background(), "acme", 7, "", 100)
	assert.Error(t, err)

	_, err = svc.GrantUpload(context.Background(), "acme", 7, "x.pdf", -1)
	assert.Error(t, err)
}

func TestServiceWithoutPresigner(t *testing.T) {
	svc := NewService(nil, 0)
	assert.False(t, svc.Enabled())

	_, err := svc.GrantUpload(context.Background(), "acme", 1, "x.pdf", 1)
	assert.Error(t, err)

	_, err = svc.DownloadURL(context.Background(), workflow.FileDescriptor{})
	assert.Error(t, err)
}

func TestServiceDownloadURL(t *testing.T) {
	p, err := NewS3Presigner(testConfig())
	require.NoError(t, err)
	svc := NewService(p, time.Minute)

	url, err := svc.DownloadURL(context.Background(), workflow.FileDescriptor{
		AWSFileLink: "s3://grc-evidence/evidence/acme/ri-1/abc.pdf",
		FileName:    "report.pdf",
		StoredName:  "abc.pdf",
		Size:        10,
	})
	require.NoError(t, err)
	assert.Contains(t, url, "X-Amz-Signature")
}
