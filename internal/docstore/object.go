package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// objectAPI is the subset of the S3 client the store uses.
type objectAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// =============================================================================
// ObjectStore Implementation
// =============================================================================

// ObjectStore keeps each document as a JSON object at {collection}/{key}.json
// in an R2 (S3-compatible) bucket.
//
// QueryByField lists the collection prefix and filters client-side, and a
// merge is a read-modify-write. Both are fine for the profile collection's
// size and write rate but not for large collections.
type ObjectStore struct {
	client     objectAPI
	bucketName string
	logger     *slog.Logger
}

// NewObjectStore creates an ObjectStore for an R2 bucket.
func NewObjectStore(cfg R2Config, logger *slog.Logger) (*ObjectStore, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("docstore: bucket name is required")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.AccountID == "" {
			return nil, errors.New("docstore: account ID or endpoint is required")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg := aws.Config{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	logger.Info("initialized object document store",
		"bucket", cfg.BucketName,
		"endpoint", endpoint,
	)

	return newObjectStore(client, cfg.BucketName, logger), nil
}

func newObjectStore(client objectAPI, bucket string, logger *slog.Logger) *ObjectStore {
	return &ObjectStore{
		client:     client,
		bucketName: bucket,
		logger:     logger,
	}
}

// =============================================================================
// Interface Implementation
// =============================================================================

// QueryByField lists every object under the collection and keeps the matches.
func (s *ObjectStore) QueryByField(ctx context.Context, collection, field, value string) ([]Record, error) {
	if err := validateName(collection); err != nil {
		return nil, &StoreError{Op: "QueryByField", Collection: collection, Err: err}
	}

	prefix := collection + "/"
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
		Prefix: aws.String(prefix),
	})

	var out []Record
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &StoreError{Op: "QueryByField", Collection: collection, Err: wrapObjectError(err)}
		}

		for _, obj := range page.Contents {
			objectKey := aws.ToString(obj.Key)
			key, ok := keyFromObject(prefix, objectKey)
			if !ok {
				continue
			}

			rec, err := s.get(ctx, collection, key)
			if err != nil {
				// Deleted between list and get.
				if IsNotFound(err) {
					continue
				}
				return nil, &StoreError{Op: "QueryByField", Collection: collection, Key: key, Err: err}
			}

			if got, ok := fieldText(rec.Data, field); ok && got == value {
				out = append(out, rec)
			}
		}
	}

	sortRecords(out)
	return out, nil
}

// WriteRecord puts the document, reading the existing one first when merging.
func (s *ObjectStore) WriteRecord(ctx context.Context, collection, key string, data map[string]any, opts WriteOptions) error {
	if err := validateRef(collection, key); err != nil {
		return &StoreError{Op: "WriteRecord", Collection: collection, Key: key, Err: err}
	}

	next := data
	if opts.Merge {
		existing, err := s.get(ctx, collection, key)
		switch {
		case err == nil:
			next = mergeData(existing.Data, data)
		case IsNotFound(err):
		default:
			return &StoreError{Op: "WriteRecord", Collection: collection, Key: key, Err: err}
		}
	}
	if next == nil {
		next = map[string]any{}
	}

	body, err := json.Marshal(next)
	if err != nil {
		return &StoreError{Op: "WriteRecord", Collection: collection, Key: key, Err: fmt.Errorf("%w: %v", ErrInvalidData, err)}
	}

	result, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(objectKey(collection, key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return &StoreError{Op: "WriteRecord", Collection: collection, Key: key, Err: wrapObjectError(err)}
	}

	s.logger.Debug("stored document object",
		"collection", collection,
		"key", key,
		"etag", aws.ToString(result.ETag),
	)

	return nil
}

// GetRecord downloads and decodes one document.
func (s *ObjectStore) GetRecord(ctx context.Context, collection, key string) (*Record, error) {
	if err := validateRef(collection, key); err != nil {
		return nil, &StoreError{Op: "GetRecord", Collection: collection, Key: key, Err: err}
	}

	rec, err := s.get(ctx, collection, key)
	if err != nil {
		return nil, &StoreError{Op: "GetRecord", Collection: collection, Key: key, Err: err}
	}
	return &rec, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

func (s *ObjectStore) get(ctx context.Context, collection, key string) (Record, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey(collection, key)),
	})
	if err != nil {
		return Record{}, wrapObjectError(err)
	}
	defer result.Body.Close()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return Record{}, fmt.Errorf("read object: %w", err)
	}

	data := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &data); err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
	}

	return Record{
		Collection: collection,
		Key:        key,
		Data:       data,
		UpdatedAt:  aws.ToTime(result.LastModified),
	}, nil
}

func objectKey(collection, key string) string {
	return collection + "/" + key + ".json"
}

// keyFromObject strips the collection prefix and .json suffix. Nested or
// foreign objects report false.
func keyFromObject(prefix, objectKey string) (string, bool) {
	rest, ok := strings.CutPrefix(objectKey, prefix)
	if !ok {
		return "", false
	}
	key, ok := strings.CutSuffix(rest, ".json")
	if !ok || key == "" || strings.Contains(key, "/") {
		return "", false
	}
	return key, true
}

// wrapObjectError converts S3 SDK errors to docstore sentinels.
func wrapObjectError(err error) error {
	if err == nil {
		return nil
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return ErrNotFound
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrNotFound
		case "AccessDenied", "Forbidden":
			return ErrAccessDenied
		}
	}

	if httpErr, ok := err.(interface{ HTTPStatusCode() int }); ok {
		switch httpErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusForbidden:
			return ErrAccessDenied
		}
	}

	return fmt.Errorf("object store operation failed: %w", err)
}
