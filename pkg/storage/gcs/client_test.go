package gcs

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type fakeGCS struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failDel map[string]bool
	auth    []string
}

func newFakeGCS() *fakeGCS {
	return &fakeGCS{
		objects: map[string][]byte{},
		types:   map[string]string{},
		failDel: map[string]bool{},
	}
}

func (f *fakeGCS) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))

		path := r.URL.EscapedPath()
		switch {
		case r.Method == http.MethodPost && path == "/upload/storage/v1/b/bucket/o":
			body, _ := io.ReadAll(r.Body)
			name := r.URL.Query().Get("name")
			f.objects[name] = body
			f.types[name] = r.Header.Get("Content-Type")
			_ = json.NewEncoder(w).Encode(map[string]string{"name": name})
		case r.Method == http.MethodGet && path == "/storage/v1/b/bucket/o":
			f.list(w, r)
		case strings.HasPrefix(path, "/storage/v1/b/bucket/o/"):
			name := strings.ReplaceAll(strings.TrimPrefix(path, "/storage/v1/b/bucket/o/"), "%2F", "/")
			data, ok := f.objects[name]
			if !ok {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			switch r.Method {
			case http.MethodGet:
				_, _ = w.Write(data)
			case http.MethodDelete:
				if f.failDel[name] {
					http.Error(w, "backend error", http.StatusInternalServerError)
					return
				}
				delete(f.objects, name)
				w.WriteHeader(http.StatusNoContent)
			}
		default:
			t.Errorf("unexpected request %s %s", r.Method, path)
			w.WriteHeader(http.StatusBadRequest)
		}
	})
}

// list pages two objects at a time so pagination is exercised.
func (f *fakeGCS) list(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	var names []string
	for name := range f.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sortStrings(names)

	start := 0
	if tok := r.URL.Query().Get("pageToken"); tok != "" {
		_, _ = fmt.Sscanf(tok, "%d", &start)
	}
	end := start + 2
	if end > len(names) {
		end = len(names)
	}

	type item struct {
		Name string `json:"name"`
		Size string `json:"size"`
	}
	resp := struct {
		Items         []item `json:"items"`
		NextPageToken string `json:"nextPageToken,omitempty"`
	}{}
	for _, name := range names[start:end] {
		resp.Items = append(resp.Items, item{Name: name, Size: fmt.Sprint(len(f.objects[name]))})
	}
	if end < len(names) {
		resp.NextPageToken = fmt.Sprint(end)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func sortStrings(values []string) {
	for i := 1; i < len(values); i++ {
		for j := i; j > 0 && values[j] < values[j-1]; j-- {
			values[j], values[j-1] = values[j-1], values[j]
		}
	}
}

func newTestClient(t *testing.T, fake *fakeGCS) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return New("bucket",
		WithHTTPClient(srv.Client()),
		WithAPIBaseURL(srv.URL),
		WithPublicBaseURL("https://cdn.example.com"),
		WithStaticToken("test-token"),
	)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	fake := newFakeGCS()
	client := newTestClient(t, fake)
	ctx := context.Background()

	if err := client.Upload(ctx, "places/p1/image-0", "image/png", []byte("png-bytes")); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if got := fake.types["places/p1/image-0"]; got != "image/png" {
		t.Fatalf("expected content type image/png, got %q", got)
	}

	data, err := client.Download(ctx, "places/p1/image-0", 0)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected payload %q", data)
	}

	if _, err := client.Download(ctx, "places/p1/image-0", 3); err == nil {
		t.Fatalf("expected size limit error")
	}

	for _, header := range fake.auth {
		if header != "Bearer test-token" {
			t.Fatalf("unexpected authorization header %q", header)
		}
	}
}

func TestDownloadURIReadsDefaultBucket(t *testing.T) {
	fake := newFakeGCS()
	fake.objects["staging/u1/pic.jpg"] = []byte("jpeg-bytes")
	client := newTestClient(t, fake)

	data, err := client.DownloadURI(context.Background(), "gs://bucket/staging/u1/pic.jpg", 0)
	if err != nil {
		t.Fatalf("download uri: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("unexpected payload %q", data)
	}
	if _, err := client.DownloadURI(context.Background(), "https://bucket/x", 0); err == nil {
		t.Fatalf("expected error for non gs:// reference")
	}
}

func TestDownloadURIRefusesOtherBuckets(t *testing.T) {
	fake := newFakeGCS()
	fake.objects["secrets/key.json"] = []byte("{}")
	client := newTestClient(t, fake)

	for _, ref := range []string{"gs://other-bucket/secrets/key.json", "gs://bucket-2/secrets/key.json"} {
		_, err := client.DownloadURI(context.Background(), ref, 0)
		if !errors.Is(err, ErrForeignBucket) {
			t.Fatalf("%s: expected ErrForeignBucket, got %v", ref, err)
		}
	}
	if len(fake.auth) != 0 {
		t.Fatalf("foreign bucket refs must not reach storage, got %d requests", len(fake.auth))
	}
}

func TestListFollowsPagesAndPrefix(t *testing.T) {
	fake := newFakeGCS()
	for i := 0; i < 5; i++ {
		fake.objects[fmt.Sprintf("places/p1/image-%d", i)] = []byte("x")
	}
	fake.objects["places/p2/image-0"] = []byte("y")
	client := newTestClient(t, fake)

	objects, err := client.List(context.Background(), "places/p1/")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(objects) != 5 {
		t.Fatalf("expected 5 objects across pages, got %d", len(objects))
	}
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Name, "places/p1/") {
			t.Fatalf("object %q escaped the prefix", obj.Name)
		}
		if obj.Size != 1 {
			t.Fatalf("expected size 1, got %d", obj.Size)
		}
	}
}

func TestDeleteMissingObject(t *testing.T) {
	client := newTestClient(t, newFakeGCS())
	err := client.Delete(context.Background(), "places/p1/image-9")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestDeleteSurfacesBackendErrors(t *testing.T) {
	fake := newFakeGCS()
	fake.objects["places/p1/image-0"] = []byte("x")
	fake.failDel["places/p1/image-0"] = true
	client := newTestClient(t, fake)

	err := client.Delete(context.Background(), "places/p1/image-0")
	var statusErr *statusError
	if !errors.As(err, &statusErr) || statusErr.status != http.StatusInternalServerError {
		t.Fatalf("expected 500 status error, got %v", err)
	}
}

func TestPing(t *testing.T) {
	client := newTestClient(t, newFakeGCS())
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestDownloadURLEscapesSegments(t *testing.T) {
	client := New("bucket", WithPublicBaseURL("https://cdn.example.com/"), WithStaticToken("t"))
	got := client.DownloadURL("places/p 1/image-0")
	if got != "https://cdn.example.com/bucket/places/p%201/image-0" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestParseURI(t *testing.T) {
	bucket, object, err := ParseURI("gs://drafts/users/u1/photo.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bucket != "drafts" || object != "users/u1/photo.jpg" {
		t.Fatalf("unexpected split %q %q", bucket, object)
	}
	for _, bad := range []string{"https://x/y", "gs://bucket", "gs:///obj"} {
		if _, _, err := ParseURI(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestCredentialSourceExchangesServiceAccountKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	exchanges := 0
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "urn:ietf:params:oauth:grant-type:jwt-bearer" || r.Form.Get("assertion") == "" {
			t.Errorf("unexpected token request %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"sa-token","token_type":"Bearer","expires_in":3600}`)
	}))
	defer tokenServer.Close()

	keyJSON, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"client_email": "places@example.iam.gserviceaccount.com",
		"private_key":  string(pemKey),
		"token_uri":    tokenServer.URL,
	})
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	ts, err := credentialSource(context.Background(), tokenServer.Client(), keyJSON)
	if err != nil {
		t.Fatalf("credential source: %v", err)
	}
	for i := 0; i < 3; i++ {
		tok, err := ts.Token()
		if err != nil || tok.AccessToken != "sa-token" {
			t.Fatalf("expected exchanged token, got %+v err=%v", tok, err)
		}
	}
	if exchanges != 1 {
		t.Fatalf("expected the token to be reused, got %d exchanges", exchanges)
	}
}

func TestCredentialSourceRejectsBrokenKey(t *testing.T) {
	if _, err := credentialSource(context.Background(), http.DefaultClient, []byte(`{"type":"service_account"`)); err == nil {
		t.Fatalf("expected parse error")
	}
}
