package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrObjectNotFound is returned when the referenced object does not exist.
var ErrObjectNotFound = errors.New("gcs: object not found")

// ErrForeignBucket is returned when a gs:// reference names a bucket other
// than the client's default.
var ErrForeignBucket = errors.New("gcs: reference outside the configured bucket")

const listPageSize = 1000

// Object is the subset of object metadata the engines consume.
type Object struct {
	Name        string
	Size        int64
	ContentType string
}

type Bucket struct {
	name   string
	client *Client
}

func (b *Bucket) Name() string {
	return b.name
}

// List returns every object whose name starts with prefix, following pages.
func (b *Bucket) List(ctx context.Context, prefix string) ([]Object, error) {
	var (
		out       []Object
		pageToken string
	)
	for {
		page, next, err := b.listPage(ctx, prefix, pageToken, listPageSize)
		if err != nil {
			return out, err
		}
		out = append(out, page...)
		if next == "" {
			return out, nil
		}
		pageToken = next
	}
}

func (b *Bucket) listPage(ctx context.Context, prefix, pageToken string, max int) ([]Object, string, error) {
	q := url.Values{}
	q.Set("maxResults", strconv.Itoa(max))
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	endpoint := fmt.Sprintf("%s/storage/v1/b/%s/o?%s", b.client.apiBaseURL, url.PathEscape(b.name), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.do(ctx, req)
	if err != nil {
		return nil, "", err
	}
	defer drainClose(resp.Body)

	var payload struct {
		Items []struct {
			Name        string `json:"name"`
			Size        string `json:"size"`
			ContentType string `json:"contentType"`
		} `json:"items"`
		NextPageToken string `json:"nextPageToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, "", fmt.Errorf("gcs: decode list: %w", err)
	}

	objects := make([]Object, 0, len(payload.Items))
	for _, item := range payload.Items {
		size, _ := strconv.ParseInt(item.Size, 10, 64)
		objects = append(objects, Object{Name: item.Name, Size: size, ContentType: item.ContentType})
	}
	return objects, payload.NextPageToken, nil
}

// Upload writes data to object with a simple media upload.
func (b *Bucket) Upload(ctx context.Context, object, contentType string, data []byte) error {
	if object == "" {
		return errors.New("gcs: object name is required")
	}
	q := url.Values{}
	q.Set("uploadType", "media")
	q.Set("name", object)
	endpoint := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?%s", b.client.apiBaseURL, url.PathEscape(b.name), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := b.do(ctx, req)
	if err != nil {
		return err
	}
	drainClose(resp.Body)
	return nil
}

// Download reads an object fully, refusing payloads larger than maxBytes
// when maxBytes is positive.
func (b *Bucket) Download(ctx context.Context, object string, maxBytes int64) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", b.client.apiBaseURL, url.PathEscape(b.name), url.PathEscape(object))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer drainClose(resp.Body)

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("gcs: read object: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("gcs: object %s exceeds %d bytes", object, maxBytes)
	}
	return data, nil
}

// Delete removes object. A missing object yields ErrObjectNotFound.
func (b *Bucket) Delete(ctx context.Context, object string) error {
	endpoint := fmt.Sprintf("%s/storage/v1/b/%s/o/%s", b.client.apiBaseURL, url.PathEscape(b.name), url.PathEscape(object))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := b.do(ctx, req)
	if err != nil {
		return err
	}
	drainClose(resp.Body)
	return nil
}

// DownloadURL resolves the public retrieval location for object.
func (b *Bucket) DownloadURL(object string) string {
	segments := strings.Split(object, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return fmt.Sprintf("%s/%s/%s", b.client.publicBaseURL, url.PathEscape(b.name), strings.Join(segments, "/"))
}

func (b *Bucket) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if b == nil || b.client == nil || b.client.tokenSource == nil {
		return nil, errors.New("gcs client not initialized")
	}
	if err := b.client.authorize(ctx, req); err != nil {
		return nil, err
	}
	resp, err := b.client.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		drainClose(resp.Body)
		return nil, ErrObjectNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drainClose(resp.Body)
		return nil, newStatusError(resp)
	}
	return resp, nil
}

// List, Upload, Download, Delete and DownloadURL on Client operate on the
// default bucket.

func (c *Client) List(ctx context.Context, prefix string) ([]Object, error) {
	return c.BucketHandle("").List(ctx, prefix)
}

func (c *Client) Upload(ctx context.Context, object, contentType string, data []byte) error {
	return c.BucketHandle("").Upload(ctx, object, contentType, data)
}

func (c *Client) Download(ctx context.Context, object string, maxBytes int64) ([]byte, error) {
	return c.BucketHandle("").Download(ctx, object, maxBytes)
}

// DownloadURI fetches a gs://bucket/object reference. Only the default
// bucket is readable this way; the service credentials may reach others.
func (c *Client) DownloadURI(ctx context.Context, ref string, maxBytes int64) ([]byte, error) {
	bucket, object, err := ParseURI(ref)
	if err != nil {
		return nil, err
	}
	if bucket != c.DefaultBucket() {
		return nil, fmt.Errorf("%w: %s", ErrForeignBucket, bucket)
	}
	return c.BucketHandle(bucket).Download(ctx, object, maxBytes)
}

func (c *Client) Delete(ctx context.Context, object string) error {
	return c.BucketHandle("").Delete(ctx, object)
}

func (c *Client) DownloadURL(object string) string {
	return c.BucketHandle("").DownloadURL(object)
}

// ParseURI splits a gs://bucket/object reference.
func ParseURI(ref string) (bucket, object string, err error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", fmt.Errorf("gcs: parse uri: %w", err)
	}
	if u.Scheme != "gs" || u.Host == "" {
		return "", "", fmt.Errorf("gcs: %q is not a gs:// reference", ref)
	}
	object = strings.TrimPrefix(u.Path, "/")
	if object == "" {
		return "", "", fmt.Errorf("gcs: %q has no object path", ref)
	}
	return u.Host, object, nil
}
