package s3

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeS3 serves the part of the S3 REST API the table uses: PutObject,
// GetObject, ListObjectsV2 (with continuation tokens) and DeleteObjects.
// Only path style requests are understood.
type fakeS3 struct {
	mu       sync.Mutex
	buckets  map[string]map[string][]byte
	pageSize int
}

type listEntry struct {
	Key  string `xml:"Key"`
	Size int    `xml:"Size"`
}

type listBucketResult struct {
	XMLName               xml.Name    `xml:"ListBucketResult"`
	Name                  string      `xml:"Name"`
	Prefix                string      `xml:"Prefix"`
	KeyCount              int         `xml:"KeyCount"`
	MaxKeys               int         `xml:"MaxKeys"`
	IsTruncated           bool        `xml:"IsTruncated"`
	NextContinuationToken string      `xml:"NextContinuationToken,omitempty"`
	Contents              []listEntry `xml:"Contents"`
}

type deleteRequest struct {
	Objects []struct {
		Key string `xml:"Key"`
	} `xml:"Object"`
}

type deletedEntry struct {
	Key string `xml:"Key"`
}

type deleteResult struct {
	XMLName xml.Name       `xml:"DeleteResult"`
	Deleted []deletedEntry `xml:"Deleted"`
}

// newFakeS3 starts a server with the given buckets and returns its URL.
// Listings are split into pages of pageSize keys.
func newFakeS3(tb testing.TB, pageSize int, buckets ...string) string {
	f := &fakeS3{buckets: make(map[string]map[string][]byte), pageSize: pageSize}
	for _, b := range buckets {
		f.buckets[b] = make(map[string][]byte)
	}
	srv := httptest.NewServer(f)
	tb.Cleanup(srv.Close)
	return srv.URL
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><RequestId>fake</RequestId></Error>`, code, code)
}

func writeXML(w http.ResponseWriter, v interface{}) {
	out, err := xml.Marshal(v)
	if err != nil {
		writeS3Error(w, http.StatusInternalServerError, "InternalError")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucketName, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	query := r.URL.Query()

	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, ok := f.buckets[bucketName]
	if !ok {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	switch {
	case r.Method == http.MethodPut && key != "":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeS3Error(w, http.StatusBadRequest, "IncompleteBody")
			return
		}
		bucket[key] = body
		w.Header().Set("ETag", `"fake"`)
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet && key != "":
		value, ok := bucket[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(value)))
		_, _ = w.Write(value)

	case r.Method == http.MethodGet && query.Get("list-type") == "2":
		writeXML(w, f.list(bucketName, bucket, query.Get("prefix"), query.Get("continuation-token")))

	case r.Method == http.MethodPost && query.Has("delete"):
		var req deleteRequest
		if err := xml.NewDecoder(r.Body).Decode(&req); err != nil {
			writeS3Error(w, http.StatusBadRequest, "MalformedXML")
			return
		}
		result := deleteResult{}
		for _, obj := range req.Objects {
			delete(bucket, obj.Key)
			result.Deleted = append(result.Deleted, deletedEntry{Key: obj.Key})
		}
		writeXML(w, result)

	default:
		writeS3Error(w, http.StatusNotImplemented, "NotImplemented")
	}
}

// list returns one page of keys with prefix that sort after token
func (f *fakeS3) list(name string, bucket map[string][]byte, prefix, token string) listBucketResult {
	var keys []string
	for k := range bucket {
		if strings.HasPrefix(k, prefix) && k > token {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	result := listBucketResult{Name: name, Prefix: prefix, MaxKeys: f.pageSize}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		result.IsTruncated = true
		result.NextContinuationToken = keys[len(keys)-1]
	}
	for _, k := range keys {
		result.Contents = append(result.Contents, listEntry{Key: k, Size: len(bucket[k])})
	}
	result.KeyCount = len(result.Contents)
	return result
}
