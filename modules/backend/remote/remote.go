// Package remote is the S3-protocol-shaped backend from §6.2, standing in
// for a RADOS object store: one object per blob, named by the lowercase
// hex of its digest, and a single well-known branch-set object whose
// compare-and-swap rides the bucket's native object-versioning (ETag
// conditional writes) the way RADOS backends use the cluster's object
// version compare (ground: original_source/attaca-rados/src/lib.rs's
// one-object-per-blob design; shape borrowed from modules/oss's Bucket
// interface, built here on the real aws-sdk-go-v2/service/s3 client
// instead of reimplementing a hand-rolled signer).
package remote

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/internal/logx"
	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/digest"
)

var log = logx.For("backend.remote")

const branchesKey = "attaca/branches"

type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ backend.Store = (*Store)(nil)

func New(client *s3.Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

// Endpoint names an S3-compatible service outside AWS itself (a RADOS
// gateway, MinIO, etc). AccessKey/SecretKey are optional; when both are
// empty the default credential chain (env, shared config, instance role)
// is used instead.
type Endpoint struct {
	Region    string
	URL       string
	AccessKey string
	SecretKey string
}

// NewFromEndpoint builds a Store from connection details rather than a
// pre-constructed client, for callers (the CLI's remote-add path, a
// server's config loader) that only have a bucket/endpoint/credential pair
// on hand.
func NewFromEndpoint(ctx context.Context, ep Endpoint, bucket, prefix string) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(ep.Region)}
	if ep.AccessKey != "" || ep.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ep.AccessKey, ep.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, log.Errorf("NewFromEndpoint", "load aws config: %v", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep.URL != "" {
			o.BaseEndpoint = aws.String(ep.URL)
			o.UsePathStyle = true
		}
	})
	return New(client, bucket, prefix), nil
}

func (s *Store) blobKey(d digest.Digest) string {
	if s.prefix == "" {
		return d.String()
	}
	return s.prefix + "/" + d.String()
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func (s *Store) PutBlob(ctx context.Context, d digest.Digest, blob backend.StoredBlob) error {
	key := s.blobKey(d)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err == nil {
		return nil // already present; finish's "existing digest" path
	}
	if !isNotFound(err) {
		return log.Errorf("PutBlob", "head %s: %v", key, err)
	}
	record := backend.EncodeRecord(blob)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(record),
	})
	if err != nil {
		return log.Errorf("PutBlob", "put %s: %v", key, err)
	}
	return nil
}

func (s *Store) GetBlob(ctx context.Context, d digest.Digest) (backend.StoredBlob, error) {
	key := s.blobKey(d)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return backend.StoredBlob{}, atcerr.NewNotFound("blob", d.String())
		}
		return backend.StoredBlob{}, log.Errorf("GetBlob", "get %s: %v", key, err)
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return backend.StoredBlob{}, log.Errorf("GetBlob", "read %s: %v", key, err)
	}
	return backend.DecodeRecord(raw)
}

func (s *Store) HasBlob(ctx context.Context, d digest.Digest) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.blobKey(d))})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// branchesObjectKey is the single well-known object name for the branch
// set (§6.2).
func (s *Store) branchesObjectKey() string {
	if s.prefix == "" {
		return branchesKey
	}
	return s.prefix + "/" + branchesKey
}

func (s *Store) readBranchesWithETag(ctx context.Context) (map[string]digest.Digest, string, error) {
	key := s.branchesObjectKey()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return map[string]digest.Digest{}, "", nil
		}
		return nil, "", log.Errorf("readBranches", "get %s: %v", key, err)
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", err
	}
	m, err := decodeBranches(raw)
	if err != nil {
		return nil, "", err
	}
	etag := ""
	if out.ETag != nil {
		etag = *out.ETag
	}
	return m, etag, nil
}

func (s *Store) LoadBranches(ctx context.Context) (map[string]digest.Digest, error) {
	m, _, err := s.readBranchesWithETag(ctx)
	return m, err
}

// SwapBranches implements the compare-and-swap over S3's conditional
// write: the PUT is sent with If-Match set to the ETag observed when prev
// was read (If-None-Match: "*" when the object is not expected to exist
// yet), so a concurrent writer's PUT between our read and write is
// rejected by the store itself rather than by a client-side race.
func (s *Store) SwapBranches(ctx context.Context, prev, next map[string]digest.Digest) error {
	current, etag, err := s.readBranchesWithETag(ctx)
	if err != nil {
		return err
	}
	if !equalBranches(current, prev) {
		return atcerr.ErrCompareFailed
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.branchesObjectKey()),
		Body:   bytes.NewReader(encodeBranches(next)),
	}
	if etag == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(etag)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		if isPreconditionFailed(err) {
			return atcerr.ErrCompareFailed
		}
		return log.Errorf("SwapBranches", "put %s: %v", s.branchesObjectKey(), err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "PreconditionFailed" || code == "412"
	}
	return false
}

func (s *Store) Close() error { return nil }
