package evidence

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyard/grc-engine/pkg/workflow"
)

func testConfig() Config {
	return Config{
		Endpoint:     "storage.example.com",
		Region:       "eu-central-1",
		KeyID:        "AKIATEST",
		Secret:       "secret",
		Bucket:       "grc-evidence",
		UsePathStyle: true,
	}
}

func TestConfigComplete(t *testing.T) {
	assert.True(t, testConfig().Complete())

	incomplete := testConfig()
	incomplete.Bucket = ""
	assert.False(t, incomplete.Complete())
}

func TestNewS3PresignerIncompleteConfig(t *testing.T) {
	_, err := NewS3Presigner(Config{})
	assert.Error(t, err)
}

func TestPresignUploadAndDownload(t *testing.T) {
	p, err := NewS3Presigner(testConfig())
	require.NoError(t, err)

	putURL, err := p.PresignUpload(context.Background(), "evidence/acme/ri-1/file.pdf", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, putURL, "grc-evidence")
	assert.Contains(t, putURL, "evidence/acme/ri-1/file.pdf")
	assert.Contains(t, putURL, "X-Amz-Signature")

	getURL, err := p.PresignDownload(context.Background(), "evidence/acme/ri-1/file.pdf", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, getURL, "X-Amz-Signature")
	assert.NotEqual(t, putURL, getURL)
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("acme", 42, "abc.pdf")
	assert.Equal(t, "evidence/acme/ri-42/abc.pdf", key)
}

func TestStoredNamePreservesExtension(t *testing.T) {
	name := StoredName("report.pdf")
	assert.True(t, strings.HasSuffix(name, ".pdf"))
	assert.NotEqual(t, "report.pdf", name)

	// Unique per call.
	assert.NotEqual(t, name, StoredName("report.pdf"))
}

func TestParseObjectURL(t *testing.T) {
	bucket, key, err := ParseObjectURL("s3://grc-evidence/evidence/acme/ri-1/abc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "grc-evidence", bucket)
	assert.Equal(t, "evidence/acme/ri-1/abc.pdf", key)

	_, _, err = ParseObjectURL("https://example.com/file")
	assert.Error(t, err)

	_, _, err = ParseObjectURL("s3://bucket-only")
	assert.Error(t, err)
}

func TestValidateDescriptor(t *testing.T) {
	valid := workflow.FileDescriptor{
		AWSFileLink: "s3://grc-evidence/evidence/acme/ri-1/abc.pdf",
		FileName:    "report.pdf",
		StoredName:  "abc.pdf",
		Size:        100,
	}
	assert.NoError(t, ValidateDescriptor(valid))

	noName := valid
	noName.FileName = ""
	assert.Error(t, ValidateDescriptor(noName))

	noStored := valid
	noStored.StoredName = ""
	assert.Error(t, ValidateDescriptor(noStored))

	negative := valid
	negative.Size = -1
	assert.Error(t, ValidateDescriptor(negative))
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.yaml")
	data := []byte("endpoint: storage.example.com\nregion: eu-central-1\nkey_id: AKIATEST\nsecret: secret\nbucket: grc-evidence\nuse_path_style: true\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, testConfig(), cfg)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
