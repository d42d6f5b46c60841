// Package fetcher loads evidence tables from local files or object storage,
// undoing compression and decoding CSV, TSV, and XLSX content into rows.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/rotisserie/eris"

	"github.com/kairuizhang035-crypto/yinguo/internal/resilience"
)

// ErrNotFound is returned when a table location does not exist.
var ErrNotFound = errors.New("fetcher: table not found")

// BlobReader reads whole objects from a bucket.
type BlobReader interface {
	ReadObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// Table is a decoded evidence table. Rows exclude the header.
type Table struct {
	Location string
	Header   []string
	Rows     [][]string
}

// Loader resolves table locations. Local paths are read from disk; s3://
// locations go through the configured BlobReader.
type Loader struct {
	blobs BlobReader
	retry resilience.RetryConfig
}

// NewLoader creates a Loader. blobs may be nil when no s3:// locations are used.
func NewLoader(blobs BlobReader) *Loader {
	return &Loader{blobs: blobs, retry: resilience.DefaultRetryConfig()}
}

// Load reads the table at location, decompresses it by suffix, and decodes
// it by format. A workbook location may name its sheet after a '#', as in
// "results.xlsx#pc"; without one the first sheet is read.
func (l *Loader) Load(ctx context.Context, location string) (*Table, error) {
	file, sheet := splitSheet(location)
	raw, err := l.readRaw(ctx, file)
	if err != nil {
		return nil, err
	}

	name := strings.ToLower(file)
	data, name, err := decompress(raw, name)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: decompress %s", location)
	}

	t := &Table{Location: location}
	switch path.Ext(name) {
	case ".xlsx":
		rows, err := ReadXLSXBinary(data, XLSXOptions{SheetName: sheet})
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: %s", location)
		}
		t.Header, t.Rows = splitHeader(rows)
	default:
		if sheet != "" {
			return nil, eris.Errorf("fetcher: %s: sheet selector on a non-workbook table", location)
		}
		opts := CSVOptions{HasHeader: true, TrimSpace: true}
		if path.Ext(name) == ".tsv" {
			opts.Delimiter = '\t'
		}
		header, rows, err := ReadCSV(ctx, bytes.NewReader(data), opts)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: %s", location)
		}
		t.Header, t.Rows = header, rows
	}

	if len(t.Header) == 0 {
		return nil, eris.Errorf("fetcher: %s has no header row", location)
	}
	return t, nil
}

func (l *Loader) readRaw(ctx context.Context, location string) ([]byte, error) {
	if bucket, key, ok := parseS3(location); ok {
		if l.blobs == nil {
			return nil, eris.Errorf("fetcher: %s requires object storage configuration", location)
		}
		data, err := resilience.DoVal(ctx, l.withLogger(location), func(ctx context.Context) ([]byte, error) {
			return l.blobs.ReadObject(ctx, bucket, key)
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) || resilience.IsMissingTable(err) {
				return nil, eris.Wrapf(ErrNotFound, "%s", location)
			}
			return nil, eris.Wrapf(err, "fetcher: read %s", location)
		}
		return data, nil
	}

	data, err := os.ReadFile(location)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, eris.Wrapf(ErrNotFound, "%s", location)
		}
		return nil, eris.Wrapf(err, "fetcher: read %s", location)
	}
	return data, nil
}

func (l *Loader) withLogger(location string) resilience.RetryConfig {
	cfg := l.retry
	cfg.OnRetry = resilience.RetryLogger("s3 get", location)
	return cfg
}

// splitSheet separates a trailing "#sheet" selector from location.
func splitSheet(location string) (file, sheet string) {
	i := strings.LastIndex(location, "#")
	if i < 0 {
		return location, ""
	}
	return location[:i], location[i+1:]
}

// parseS3 splits "s3://bucket/key" into its parts.
func parseS3(location string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(location, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// decompress undoes a .gz, .zst, or .lz4 suffix and returns the name with
// the suffix removed.
func decompress(data []byte, name string) ([]byte, string, error) {
	var r io.Reader
	switch path.Ext(name) {
	case ".gz":
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, name, eris.Wrap(err, "gzip")
		}
		defer zr.Close() //nolint:errcheck
		r = zr
	case ".zst":
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, name, eris.Wrap(err, "zstd")
		}
		defer zr.Close()
		r = zr
	case ".lz4":
		r = lz4.NewReader(bytes.NewReader(data))
	default:
		return data, name, nil
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, name, eris.Wrapf(err, "read %s stream", path.Ext(name))
	}
	return out, strings.TrimSuffix(name, path.Ext(name)), nil
}

func splitHeader(rows [][]string) ([]string, [][]string) {
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], rows[1:]
}
