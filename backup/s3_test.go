package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slnfs/station-ledger/config"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &s3.PutObjectOutput{}, nil
}

func TestS3Uploader_PutsUnderPrefixedKey(t *testing.T) {
	put := &fakePutter{}
	u := &S3Uploader{client: put, bucket: "ledger-backups", prefix: "slnfs/"}

	key, err := u.Upload(context.Background(), "slnfs_crm_backup_x.db", bytes.NewReader([]byte("SQLite format 3")))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "slnfs/"), key)
	assert.True(t, strings.HasSuffix(key, "/slnfs_crm_backup_x.db"), key)
	assert.Equal(t, "ledger-backups", aws.ToString(put.input.Bucket))
	assert.Equal(t, key, aws.ToString(put.input.Key))
	assert.Equal(t, []byte("SQLite format 3"), put.body)
}

func TestS3Uploader_KeysAreUnique(t *testing.T) {
	u := &S3Uploader{prefix: "p/"}
	assert.NotEqual(t, u.Key("a.db"), u.Key("a.db"))
}

func TestS3Uploader_WrapsError(t *testing.T) {
	u := &S3Uploader{client: &fakePutter{err: errors.New("denied")}, bucket: "b"}

	_, err := u.Upload(context.Background(), "a.db", bytes.NewReader(nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

func TestNewS3Uploader_RequiresBucket(t *testing.T) {
	_, err := NewS3Uploader(context.Background(), config.S3{Enabled: true})
	assert.Error(t, err)
}

func TestNewS3Uploader_CustomEndpoint(t *testing.T) {
	u, err := NewS3Uploader(context.Background(), config.S3{
		Enabled:   true,
		Endpoint:  "http://127.0.0.1:9000",
		Bucket:    "b",
		AccessKey: "ak",
		SecretKey: "sk",
		Prefix:    "slnfs/",
	})
	require.NoError(t, err)

	client, ok := u.client.(*s3.Client)
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:9000", aws.ToString(client.Options().BaseEndpoint))
	assert.True(t, client.Options().UsePathStyle)
	assert.Equal(t, "auto", client.Options().Region)
}
