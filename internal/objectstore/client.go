package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"caseflow/internal/config"
)

// Backend is the subset of object-store operations the storage and lock
// packages depend on. *Client satisfies it against a real S3-compatible
// endpoint; tests substitute an in-memory fake.
type Backend interface {
	Head(ctx context.Context, key string) bool
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte, mime string) error
	PutJSON(ctx context.Context, key string, obj any) error
	Delete(ctx context.Context, key string) error
	ListObjects(ctx context.Context, prefix string) ([]Object, error)
	ListDirectories(ctx context.Context, prefix string) ([]string, error)
}

// Object describes one listed key and its server-side last-modified stamp,
// normalized to epoch seconds at this boundary (resolves the source's
// epoch-float-vs-datetime inconsistency once and for all).
type Object struct {
	Key              string
	LastModifiedUnix float64
}

// Client is a thin wrapper around an S3-compatible bucket. It never caches
// state beyond the underlying SDK client: every call hits the network.
type Client struct {
	s3     *s3.Client
	presig *s3.PresignClient
	bucket string
}

// NewClient builds a Client from the environment-sourced bucket
// configuration, pointing the S3 SDK at a custom endpoint when one is
// configured (DigitalOcean Spaces, MinIO, or any other S3-compatible
// target).
func NewClient(ctx context.Context, cfg *config.BucketConfig) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.KeyID, cfg.KeySecret, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading object store config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = false
	})

	return &Client{
		s3:     s3Client,
		presig: s3.NewPresignClient(s3Client),
		bucket: cfg.Name,
	}, nil
}

// Head returns false on any access error, including a genuine not-found.
func (c *Client) Head(ctx context.Context, key string) bool {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	return err == nil
}

// Get downloads the full object body.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("reading body for %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// Put uploads raw bytes with the given content type.
func (c *Client) Put(ctx context.Context, key string, body []byte, mime string) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(mime),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// PutJSON marshals obj with stable key order and writes it as UTF-8 JSON.
func (c *Client) PutJSON(ctx context.Context, key string, obj any) error {
	body, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	return c.Put(ctx, key, body, "application/json; charset=utf-8")
}

// Delete removes a single key. A missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ListObjects exhaustively paginates every key under prefix.
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	var token *string
	for {
		out, err := c.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			var lastModified float64
			if obj.LastModified != nil {
				lastModified = float64(obj.LastModified.Unix())
			}
			objects = append(objects, Object{Key: aws.ToString(obj.Key), LastModifiedUnix: lastModified})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return objects, nil
}

// ListDirectories returns the first path segment past prefix, using "/" as
// the delimiter, excluding the prefix itself and any empty name.
func (c *Client) ListDirectories(ctx context.Context, prefix string) ([]string, error) {
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	var dirs []string
	var token *string
	for {
		out, err := c.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list directories %s: %w", prefix, err)
		}
		for _, commonPrefix := range out.CommonPrefixes {
			name := aws.ToString(commonPrefix.Prefix)
			name = name[len(prefix):]
			name = trimTrailingSlash(name)
			if name != "" {
				dirs = append(dirs, name)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return dirs, nil
}

// ClearPrefix deletes every object under prefix, batching up to 1000 keys
// per request per the S3 DeleteObjects limit.
func (c *Client) ClearPrefix(ctx context.Context, prefix string) error {
	objects, err := c.ListObjects(ctx, prefix)
	if err != nil {
		return err
	}
	const batchSize = 1000
	for i := 0; i < len(objects); i += batchSize {
		end := min(i+batchSize, len(objects))
		if err := c.deleteBatch(ctx, objects[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) deleteBatch(ctx context.Context, batch []Object) error {
	objectIDs := make([]s3types.ObjectIdentifier, 0, len(batch))
	for _, obj := range batch {
		objectIDs = append(objectIDs, s3types.ObjectIdentifier{Key: aws.String(obj.Key)})
	}
	_, err := c.s3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(c.bucket),
		Delete: &s3types.Delete{Objects: objectIDs},
	})
	if err != nil {
		return fmt.Errorf("batch delete under prefix: %w", err)
	}
	return nil
}

// Presign produces a time-limited URL for either a get or a put.
func (c *Client) Presign(ctx context.Context, action string, key string, expires time.Duration) (string, error) {
	switch action {
	case "get":
		req, err := c.presig.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(expires))
		if err != nil {
			return "", fmt.Errorf("presign get %s: %w", key, err)
		}
		return req.URL, nil
	case "put":
		req, err := c.presig.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(expires))
		if err != nil {
			return "", fmt.Errorf("presign put %s: %w", key, err)
		}
		return req.URL, nil
	default:
		return "", fmt.Errorf("unknown presign action %q", action)
	}
}

func trimTrailingSlash(s string) string {
	if len(s) > 0 && s[len(s)-1] == '/' {
		return s[:len(s)-1]
	}
	return s
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// IsNotFound reports whether err represents a missing-key response from the
// S3-compatible endpoint.
func IsNotFound(err error) bool {
	var apiErr smithy.APIError
	if ok := asAPIError(err, &apiErr); ok {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func asAPIError(err error, target *smithy.APIError) bool {
	for err != nil {
		if apiErr, ok := err.(smithy.APIError); ok {
			*target = apiErr
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
