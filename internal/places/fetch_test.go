package places

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeGS struct {
	refs map[string][]byte
}

func (f *fakeGS) DownloadURI(ctx context.Context, ref string, maxBytes int64) ([]byte, error) {
	if data, ok := f.refs[ref]; ok {
		return data, nil
	}
	return nil, errors.New("not found")
}

func TestRefFetcherSchemes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "pic.png"), pngHeader, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	f := NewRefFetcher(&fakeGS{refs: map[string][]byte{"gs://b/pic.png": pngHeader}}, root, 1024, time.Second)
	f.http = srv.Client()
	ctx := context.Background()

	for _, ref := range []string{
		srv.URL + "/pic.png",
		"gs://b/pic.png",
		"file://" + filepath.Join(root, "pic.png"),
		"data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader),
	} {
		data, err := f.Fetch(ctx, ref)
		if err != nil {
			t.Fatalf("fetch %s: %v", ref, err)
		}
		if string(data) != string(pngHeader) {
			t.Fatalf("fetch %s returned unexpected bytes", ref)
		}
	}

	for _, ref := range []string{
		srv.URL + "/missing",
		"file:///etc/passwd",
		"ftp://host/pic.png",
		"data:image/png,raw",
	} {
		if _, err := f.Fetch(ctx, ref); err == nil {
			t.Fatalf("expected error for %s", ref)
		}
	}
}

func TestRefFetcherRefusesNonPublicHosts(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	redirect := httptest.NewServer(http.RedirectHandler(srv.URL+"/pic.png", http.StatusFound))
	defer redirect.Close()

	f := NewRefFetcher(nil, "", 1024, time.Second)
	ctx := context.Background()
	for _, ref := range []string{
		srv.URL + "/pic.png",
		redirect.URL + "/pic.png",
		"http://169.254.169.254/computeMetadata/v1/instance/service-accounts/default/token",
		"http://10.0.0.7/pic.png",
		"http://[::1]:9/pic.png",
		"http://0.0.0.0:9/pic.png",
	} {
		if _, err := f.Fetch(ctx, ref); !errors.Is(err, ErrBlockedAddress) {
			t.Fatalf("%s: expected ErrBlockedAddress, got %v", ref, err)
		}
	}
	if hits != 0 {
		t.Fatalf("blocked refs must not reach the server, got %d hits", hits)
	}
}

func TestIsPublicAddr(t *testing.T) {
	for addr, want := range map[string]bool{
		"8.8.8.8":          true,
		"142.250.184.16":   true,
		"2001:4860::8888":  true,
		"127.0.0.1":        false,
		"10.1.2.3":         false,
		"172.16.0.1":       false,
		"192.168.1.10":     false,
		"169.254.169.254":  false,
		"100.64.0.1":       false,
		"0.0.0.0":          false,
		"224.0.0.1":        false,
		"::1":              false,
		"fe80::1":          false,
		"fd00::1":          false,
		"::ffff:127.0.0.1": false,
	} {
		if got := isPublicAddr(netip.MustParseAddr(addr)); got != want {
			t.Fatalf("%s: expected public=%v, got %v", addr, want, got)
		}
	}
}

func TestRefFetcherLimitsAndDisabledSchemes(t *testing.T) {
	f := NewRefFetcher(nil, "", 4, time.Second)
	ctx := context.Background()

	if _, err := f.Fetch(ctx, "gs://b/pic.png"); err == nil {
		t.Fatalf("gs refs should be disabled without a downloader")
	}
	if _, err := f.Fetch(ctx, "file:///tmp/pic.png"); err == nil {
		t.Fatalf("file refs should be disabled without a root")
	}
	if _, err := f.Fetch(ctx, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngHeader)); err == nil {
		t.Fatalf("expected size limit error")
	}
}

func TestDetectImageType(t *testing.T) {
	ctype, err := detectImageType(pngHeader)
	if err != nil || ctype != "image/png" {
		t.Fatalf("expected image/png, got %q, %v", ctype, err)
	}
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	if ctype, err := detectImageType(jpeg); err != nil || ctype != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %q, %v", ctype, err)
	}
	if _, err := detectImageType([]byte("%PDF-1.7\n")); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected unsupported image, got %v", err)
	}
	if _, err := detectImageType(nil); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected unsupported image for empty payload, got %v", err)
	}
}
