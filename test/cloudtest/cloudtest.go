// Package cloudtest runs keeptree integration tests against a moto S3
// server. Tests using it carry the cloudintegration build tag and skip when
// the server is not reachable.
//
//	func TestUpload_CloudIntegration(t *testing.T) {
//	    cloudtest.SkipIfUnavailable(t)
//	    container := cloudtest.CreateContainer(t, ctx)
//	    c, _ := blobsync.New(ctx, blobsync.Config{
//	        ConnectionString: cloudtest.ConnectionString(),
//	        Container:        container,
//	    })
//	    ...
//	}
package cloudtest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// moto accepts any credentials.
const (
	AccessKeyID     = "testing"
	SecretAccessKey = "testing"
)

var (
	// Endpoint defaults to port 5555; override with MOTO_ENDPOINT.
	Endpoint = envOr("MOTO_ENDPOINT", "http://localhost:5555")

	// Region defaults to us-east-1; override with MOTO_REGION.
	Region = envOr("MOTO_REGION", "us-east-1")

	clientOnce sync.Once
	client     *s3.Client
	clientErr  error

	invalidNameChars = regexp.MustCompile(`[^a-z0-9-]+`)
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ConnectionString returns an s3:// connection string for the moto server.
func ConnectionString() string {
	q := url.Values{}
	q.Set("endpoint", Endpoint)
	q.Set("region", Region)
	q.Set("access_key", AccessKeyID)
	q.Set("secret_key", SecretAccessKey)
	return "s3://?" + q.Encode()
}

// SkipIfUnavailable skips t when moto does not answer on Endpoint.
func SkipIfUnavailable(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, Endpoint+"/moto-api/", nil)
	if err == nil {
		var resp *http.Response
		if resp, err = http.DefaultClient.Do(req); err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
			err = fmt.Errorf("status %d", resp.StatusCode)
		}
	}
	t.Skipf("moto server not available at %s: %v", Endpoint, err)
}

func s3Client(t *testing.T) *s3.Client {
	t.Helper()
	clientOnce.Do(func() {
		cfg, err := config.LoadDefaultConfig(context.Background(),
			config.WithRegion(Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(AccessKeyID, SecretAccessKey, "")),
		)
		if err != nil {
			clientErr = err
			return
		}
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(Endpoint)
			o.UsePathStyle = true
		})
	})
	if clientErr != nil {
		t.Fatalf("moto client: %v", clientErr)
	}
	return client
}

// ContainerName returns a bucket name unique to t without creating it. The
// bucket and its objects are removed when t finishes.
func ContainerName(t *testing.T) string {
	t.Helper()
	name := strings.Trim(invalidNameChars.ReplaceAllString(strings.ToLower(t.Name()), "-"), "-")
	if len(name) > 50 {
		name = strings.TrimRight(name[:50], "-")
	}
	name = fmt.Sprintf("kt-%s-%d", name, time.Now().UnixNano()%100000)
	t.Cleanup(func() { removeContainer(t, name) })
	return name
}

// CreateContainer creates a fresh bucket and returns its name.
func CreateContainer(t *testing.T, ctx context.Context) string {
	t.Helper()
	name := ContainerName(t)
	if _, err := s3Client(t).CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)}); err != nil {
		t.Fatalf("create bucket %s: %v", name, err)
	}
	return name
}

func removeContainer(t *testing.T, bucket string) {
	ctx := context.Background()
	c := s3Client(t)
	for _, key := range listKeys(ctx, c, bucket, "") {
		_, _ = c.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	}
	if _, err := c.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		t.Logf("delete bucket %s: %v", bucket, err)
	}
}

// PutObject writes content under key, bypassing keeptree.
func PutObject(t *testing.T, ctx context.Context, bucket, key string, content []byte) {
	t.Helper()
	_, err := s3Client(t).PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		t.Fatalf("put %s/%s: %v", bucket, key, err)
	}
}

// Keys lists every key under prefix in listing order.
func Keys(t *testing.T, ctx context.Context, bucket, prefix string) []string {
	t.Helper()
	return listKeys(ctx, s3Client(t), bucket, prefix)
}

func listKeys(ctx context.Context, c *s3.Client, bucket, prefix string) []string {
	var keys []string
	pages := s3.NewListObjectsV2Paginator(c, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return keys
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys
}
