package files

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorrisk/config"
	"vendorrisk/internal/core"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     string
	}{
		{name: "pdf", contentType: "application/pdf", size: 100},
		{name: "jpeg with params", contentType: "image/jpeg; charset=binary", size: 1},
		{name: "png upper case", contentType: "IMAGE/PNG", size: 1},
		{name: "unknown size", contentType: "image/png", size: -1},
		{name: "exactly the limit", contentType: "application/pdf", size: MaxUploadSize},
		{name: "gif", contentType: "image/gif", size: 1, wantErr: "Only PDF, JPEG, and PNG files are allowed"},
		{name: "empty type", contentType: "", size: 1, wantErr: "Only PDF, JPEG, and PNG files are allowed"},
		{name: "too large", contentType: "application/pdf", size: MaxUploadSize + 1, wantErr: "File exceeds the 10 MB limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.contentType, tt.size)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var apiErr *core.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, 400, apiErr.HTTPStatusCode())
			assert.Equal(t, tt.wantErr, apiErr.Message)
		})
	}
}

func TestObjectKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	assert.Equal(t, "1700000000123-soc2_report_2024.pdf", ObjectKey(now, "soc2 report \t 2024.pdf"))
	assert.Equal(t, "1700000000123-passwd", ObjectKey(now, "../../etc/passwd"))
	assert.Equal(t, "1700000000123-evil.png", ObjectKey(now, `C:\Users\x\evil.png`))
	assert.Equal(t, "1700000000123-upload", ObjectKey(now, ""))
}

func TestLocalStore_PutAndURL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalStore(dir, "/api/uploads/")
	require.NoError(t, err)
	store.now = func() time.Time { return time.UnixMilli(1700000000000) }

	key, err := store.Put(context.Background(), "policy doc.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "1700000000000-policy_doc.pdf", key)

	data, err := os.ReadFile(filepath.Join(dir, key))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	url, err := store.URL(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "/api/uploads/1700000000000-policy_doc.pdf", url)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLocalStore_RejectsOversizedBody(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/api/uploads")
	require.NoError(t, err)

	body := strings.NewReader(strings.Repeat("x", MaxUploadSize+1))
	_, err = store.Put(context.Background(), "big.pdf", "application/pdf", body)

	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "File exceeds the 10 MB limit", apiErr.Message)
}

func TestLocalStore_URLRejectsPaths(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/api/uploads")
	require.NoError(t, err)

	for _, key := range []string{"", "../secret", `a\b`} {
		_, err := store.URL(context.Background(), key)
		assert.Error(t, err, key)
	}
}

func TestNewLocalStore_RequiresDir(t *testing.T) {
	_, err := NewLocalStore("", "/api/uploads")
	assert.Error(t, err)
}

func testAWSConfig() aws.Config {
	return aws.Config{
		Region: "us-east-1",
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"}, nil
		}),
	}
}

func TestS3Store_URLPresignsGet(t *testing.T) {
	store, err := NewS3StoreFromConfig(testAWSConfig(), S3Config{
		Bucket:   "evidence",
		Endpoint: "http://localhost:9000",
	})
	require.NoError(t, err)

	url, err := store.URL(context.Background(), "1700000000000-report.pdf")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/evidence/1700000000000-report.pdf?"), url)
	assert.Contains(t, url, "X-Amz-Expires=3600")
	assert.Contains(t, url, "X-Amz-Signature=")
}

func TestS3Store_CustomTTL(t *testing.T) {
	store, err := NewS3StoreFromConfig(testAWSConfig(), S3Config{
		Bucket:   "evidence",
		Endpoint: "http://localhost:9000",
		URLTTL:   5 * time.Minute,
	})
	require.NoError(t, err)

	url, err := store.URL(context.Background(), "k.png")
	require.NoError(t, err)
	assert.Contains(t, url, "X-Amz-Expires=300")
}

func TestNewS3StoreFromConfig_RequiresBucket(t *testing.T) {
	_, err := NewS3StoreFromConfig(testAWSConfig(), S3Config{})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	store, err := New(context.Background(), config.FilesConfig{Backend: "local", Dir: t.TempDir()}, "/api/uploads")
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = New(context.Background(), config.FilesConfig{Backend: "ftp"}, "/api/uploads")
	assert.Error(t, err)
}
