package dataset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupported indicates a source format is not supported.
var ErrUnsupported = errors.New("unsupported dataset source")

// Loader reads one family of sources.
type Loader interface {
	CanLoad(src string) bool
	Load(ctx context.Context, src string, opt Options) (*Dataset, error)
}

var registry []Loader

// Register adds a loader; later registrations are consulted first.
func Register(l Loader) {
	registry = append([]Loader{l}, registry...)
}

// Load picks a loader for src (file path, s3:// URI or database URL) and reads it.
// Errors are wrapped with a "dataset:" prefix.
func Load(ctx context.Context, src string, opt Options) (*Dataset, error) {
	for _, l := range registry {
		if l.CanLoad(src) {
			ds, err := l.Load(ctx, src, opt)
			if err != nil {
				return nil, fmt.Errorf("dataset: %w", err)
			}
			return ds, nil
		}
	}
	return nil, fmt.Errorf("dataset: %w: %s", ErrUnsupported, src)
}

// Redact drops credentials from a database URL so it can be logged or stored.
// Paths and URIs without userinfo are returned unchanged.
func Redact(src string) string {
	scheme, rest, ok := strings.Cut(src, "://")
	if !ok {
		return src
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return src
	}
	if slash := strings.Index(rest, "/"); slash >= 0 && slash < at {
		return src
	}
	return scheme + "://" + rest[at+1:]
}

type csvLoader struct{}

func (csvLoader) CanLoad(src string) bool {
	switch strings.ToLower(filepath.Ext(src)) {
	case ".csv", ".tsv", ".tab", ".txt":
		return !strings.Contains(src, "://")
	}
	return false
}

func (csvLoader) Load(_ context.Context, src string, opt Options) (*Dataset, error) {
	return LoadCSV(src, opt)
}

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(src string) bool {
	return strings.EqualFold(filepath.Ext(src), ".xlsx") && !strings.Contains(src, "://")
}

func (xlsxLoader) Load(_ context.Context, src string, opt Options) (*Dataset, error) {
	return LoadXLSX(src, opt)
}

type sqlLoader struct{}

func (sqlLoader) CanLoad(src string) bool { return IsSQLSource(src) }

func (sqlLoader) Load(ctx context.Context, src string, opt Options) (*Dataset, error) {
	if opt.Table == "" {
		return nil, errors.New("a table name is required for database sources")
	}
	db, err := OpenSQL(src)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return LoadSQL(ctx, db, opt.Table, opt)
}

// S3Client builds the object client for s3:// sources. Replaced in tests.
var S3Client = func(ctx context.Context, region string) (ObjectGetter, error) {
	return NewS3Client(ctx, region)
}

type s3Loader struct{}

func (s3Loader) CanLoad(src string) bool { return strings.HasPrefix(src, "s3://") }

func (s3Loader) Load(ctx context.Context, src string, opt Options) (*Dataset, error) {
	client, err := S3Client(ctx, opt.Region)
	if err != nil {
		return nil, err
	}
	return LoadS3(ctx, client, src, opt)
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
	Register(sqlLoader{})
	Register(s3Loader{})
}
