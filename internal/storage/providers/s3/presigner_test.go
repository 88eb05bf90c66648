package s3

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/tastier/internal/storage"
)

func TestPresigner_ResolveURL(t *testing.T) {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
		BaseEndpoint: aws.String("http://minio.local:9000"),
		UsePathStyle: true,
	})
	p := NewWithClient(client, 5*time.Minute)

	ref := storage.Parse("s3://recipes/images/r1.jpg")
	raw, err := p.ResolveURL(context.Background(), ref)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "minio.local:9000", u.Host)
	assert.True(t, strings.HasPrefix(u.Path, "/recipes/images/r1.jpg"))
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestNewWithClient_DefaultTTL(t *testing.T) {
	p := NewWithClient(s3.New(s3.Options{Region: "us-east-1"}), 0)
	assert.Equal(t, 15*time.Minute, p.ttl)
}
