package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the slice of the S3 client this store needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps evidence bytes in an S3 bucket with bucket-default KMS
// encryption. Refs look like s3://bucket/key.
type S3Store struct {
	client S3API
	bucket string
}

func NewS3Store(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) Store(ctx context.Context, data []byte, path string) (Ref, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(path),
		Body:                 bytes.NewReader(data),
		ServerSideEncryption: types.ServerSideEncryptionAwsKms,
	})
	if err != nil {
		return "", fmt.Errorf("store evidence %s: %w", path, err)
	}
	return Ref("s3://" + s.bucket + "/" + path), nil
}

func (s *S3Store) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	bucket, key, err := splitRef(ref)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch evidence %s: %w", ref, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func splitRef(ref Ref) (bucket, key string, err error) {
	raw, ok := strings.CutPrefix(string(ref), "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 ref: %s", ref)
	}
	bucket, key, ok = strings.Cut(raw, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed s3 ref: %s", ref)
	}
	return bucket, key, nil
}
