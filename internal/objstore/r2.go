package objstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2 stores objects in a Cloudflare R2 bucket through the S3 API.
type R2 struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	endpoint  string
	publicURL string
}

var _ Store = (*R2)(nil)

// NewR2 builds a client for the bucket described by c.
func NewR2(c Credentials) (*R2, error) {
	if !c.Complete() {
		return nil, fmt.Errorf("objstore: incomplete r2 credentials")
	}
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
	publicURL := strings.TrimRight(c.PublicURL, "/")
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://pub-%s.r2.dev", c.AccountID)
	}
	client := s3.New(s3.Options{
		Region:       "auto",
		Credentials:  credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	})
	return &R2{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    c.Bucket,
		endpoint:  endpoint,
		publicURL: publicURL,
	}, nil
}

// Put implements Store.
func (r *R2) Put(ctx context.Context, data []byte, key, contentType string) (string, error) {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(r.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("objstore: put %s: %w", key, err)
	}
	return r.URL(key), nil
}

// Delete implements Store.
func (r *R2) Delete(ctx context.Context, rawURL string) error {
	key, ok := r.KeyFromURL(rawURL)
	if !ok {
		return fmt.Errorf("objstore: url not in bucket %s: %s", r.bucket, rawURL)
	}
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("objstore: delete %s: %w", key, err)
	}
	return nil
}

// SignedURL implements Store.
func (r *R2) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("objstore: presign %s: %w", key, err)
	}
	return req.URL, nil
}

// PublicURL returns the prefix objects are served under.
func (r *R2) PublicURL() string { return r.publicURL }

// URL returns the public address of key: the configured public URL, or the
// bucket's r2.dev domain.
func (r *R2) URL(key string) string {
	return r.publicURL + "/" + key
}

// KeyFromURL recovers the object key from a URL produced by URL. Path-style
// endpoint URLs for the same bucket are accepted too.
func (r *R2) KeyFromURL(rawURL string) (string, bool) {
	if strings.HasPrefix(rawURL, r.publicURL+"/") {
		key := trimQuery(strings.TrimPrefix(rawURL, r.publicURL+"/"))
		return key, key != ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme+"://"+u.Host != r.endpoint {
		return "", false
	}
	p, ok := strings.CutPrefix(strings.TrimPrefix(u.Path, "/"), r.bucket+"/")
	return p, ok && p != ""
}

func trimQuery(s string) string {
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i]
	}
	return s
}
