package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/kedaikopi/kopi/lib/db"
	"golang.org/x/sync/errgroup"
)

const (
	// maxDeleteObjects is the S3 limit for one DeleteObjects request
	maxDeleteObjects = 1000

	defaultConcurrency = 16
)

// s3Impl stores every row as one object "<table>/<key>" in a bucket.
// S3 has no multi object transactions, batches are applied object by object.
type s3Impl struct {
	client      *s3.Client
	bucket      string
	table       string
	concurrency int
	closed      atomic.Bool
}

// DBOptions configures the s3 table
type DBOptions struct {
	Bucket          string     // Required. Bucket holding the objects.
	Table           string     // Object key prefix (without the trailing slash)
	Region          string     // Optional region, falls back to the environment
	Endpoint        string     // Optional endpoint for S3 compatible servers (path style addressing)
	AccessKeyID     string     // Optional static credentials
	SecretAccessKey string     // Optional static credentials
	Concurrency     int        // Parallel GetObject calls for multi row reads
	Client          *s3.Client // Optional. Used instead of building a client from the fields above.
}

// NewS3DB builds an S3 client (unless one is given) and returns the table.
// The bucket must exist.
func NewS3DB(ctx context.Context, opts DBOptions) (db.Table, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	if opts.Table == "" {
		opts.Table = db.DefaultTableName
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	client := opts.Client
	if client == nil {
		var err error
		if client, err = newClient(ctx, opts); err != nil {
			return nil, err
		}
	}

	return &s3Impl{
		client:      client,
		bucket:      opts.Bucket,
		table:       strings.TrimSuffix(opts.Table, "/"),
		concurrency: opts.Concurrency,
	}, nil
}

func newClient(ctx context.Context, opts DBOptions) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Endpoint != "" {
		resolver := aws.EndpointResolverFunc(func(service, region string) (aws.Endpoint, error) {
			return aws.Endpoint{URL: opts.Endpoint, HostnameImmutable: true}, nil
		})
		loadOpts = append(loadOpts, config.WithEndpointResolver(resolver))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("could not load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.Endpoint != ""
	}), nil
}

func (s *s3Impl) objectKey(key string) string {
	return s.table + "/" + key
}

func (s *s3Impl) rowKey(objectKey string) string {
	return strings.TrimPrefix(objectKey, s.table+"/")
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Upsert puts one object per row. Rows are written in order, a failure
// leaves the earlier rows of the batch in place.
func (s *s3Impl) Upsert(ctx context.Context, rows []db.Row) error {
	if s.closed.Load() {
		return db.ErrClosed
	}

	for _, row := range rows {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.objectKey(row.Key)),
			Body:        bytes.NewReader(row.Value),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return fmt.Errorf("put %s: %w", row.Key, err)
		}
	}
	return nil
}

func (s *s3Impl) Delete(ctx context.Context, keys []string) error {
	if s.closed.Load() {
		return db.ErrClosed
	}

	for start := 0; start < len(keys); start += maxDeleteObjects {
		end := start + maxDeleteObjects
		if end > len(keys) {
			end = len(keys)
		}

		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(s.objectKey(key))})
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids},
		})
		if err != nil {
			return err
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("delete %s: %s: %s", aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message))
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

func (s *s3Impl) Select(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if s.closed.Load() {
		return nil, false, db.ErrClosed
	}
	return s.get(ctx, key)
}

func (s *s3Impl) get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer out.Body.Close()

	value, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// getMany fetches the given keys in parallel. Keys that vanish in between are skipped.
func (s *s3Impl) getMany(ctx context.Context, keys []string) ([]db.Row, error) {
	var (
		mu   sync.Mutex
		rows = make([]db.Row, 0, len(keys))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			value, found, err := s.get(ctx, key)
			if err != nil || !found {
				return err
			}
			mu.Lock()
			rows = append(rows, db.Row{Key: key, Value: value})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *s3Impl) SelectIn(ctx context.Context, keys []string) ([]db.Row, error) {
	if s.closed.Load() {
		return nil, db.ErrClosed
	}

	seen := make(map[string]struct{}, len(keys))
	unique := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			unique = append(unique, key)
		}
	}
	return s.getMany(ctx, unique)
}

// SelectPrefix lists the matching objects, then fetches them.
func (s *s3Impl) SelectPrefix(ctx context.Context, prefix string) ([]db.Row, error) {
	if s.closed.Load() {
		return nil, db.ErrClosed
	}

	keys, err := s.list(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return s.getMany(ctx, keys)
}

func (s *s3Impl) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, s.rowKey(aws.ToString(obj.Key)))
		}
	}
	return keys, nil
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

const features = db.FeatureCRUD | db.FeaturePersistent

func (s *s3Impl) SupportsFeature(feature db.Feature) bool {
	return features&feature == feature
}

// GetInfo lists the whole table to count the rows, which can be slow for large tables.
func (s *s3Impl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:            db.ImplS3,
		Table:             s.table,
		SupportedFeatures: features.Split(),
		Metadata: &struct {
			Bucket string `json:"bucket"`
			Prefix string `json:"prefix"`
		}{Bucket: s.bucket, Prefix: s.table + "/"},
	}
	if s.closed.Load() {
		return info
	}

	if keys, err := s.list(context.Background(), ""); err == nil {
		info.RowCount = len(keys)
	}
	return info
}

// Close marks the table closed. The S3 client holds no resources that need releasing.
func (s *s3Impl) Close() error {
	s.closed.Store(true)
	return nil
}
