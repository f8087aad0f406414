package places

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var allowedImageTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif", "image/heic", "image/heif"}

// ErrUnsupportedImage is returned when fetched bytes are not an allowed image type.
var ErrUnsupportedImage = errors.New("unsupported image type")

// ErrBlockedAddress is returned when an http(s) image ref resolves to a
// loopback, private, link-local or otherwise non-public address.
var ErrBlockedAddress = errors.New("image host is not a public address")

// sharedAddressSpace is the carrier-grade NAT range, which netip does not
// report as private.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

type gsDownloader interface {
	DownloadURI(ctx context.Context, ref string, maxBytes int64) ([]byte, error)
}

// RefFetcher loads image bytes from the references a draft carries:
// http(s) URLs, gs:// objects, data: URIs and, when a root is configured,
// file:// paths below that root.
type RefFetcher struct {
	http      *http.Client
	gs        gsDownloader
	localRoot string
	maxBytes  int64
}

// NewRefFetcher builds a fetcher. gs may be nil, which disables gs:// refs.
func NewRefFetcher(gs gsDownloader, localRoot string, maxBytes int64, timeout time.Duration) *RefFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	root := ""
	if strings.TrimSpace(localRoot) != "" {
		root = filepath.Clean(localRoot)
	}
	return &RefFetcher{
		http:      &http.Client{Timeout: timeout, Transport: publicOnlyTransport()},
		gs:        gs,
		localRoot: root,
		maxBytes:  maxBytes,
	}
}

// Fetch returns the bytes behind ref.
func (f *RefFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "data:") {
		return f.decodeDataURI(ref)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse image ref: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, u.String())
	case "gs":
		if f.gs == nil {
			return nil, fmt.Errorf("gs:// refs are not enabled")
		}
		return f.gs.DownloadURI(ctx, ref, f.maxBytes)
	case "file":
		return f.readLocal(u.Path)
	default:
		return nil, fmt.Errorf("unsupported image ref scheme %q", u.Scheme)
	}
}

func (f *RefFetcher) fetchHTTP(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	return f.readLimited(resp.Body)
}

// publicOnlyTransport checks the resolved address on every dial, redirects
// included, and ignores proxy settings so the check sees the real target.
func publicOnlyTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: 10 * time.Second, Control: refuseNonPublic}
	return &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
	}
}

func refuseNonPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !isPublicAddr(addr) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, addr)
	}
	return nil
}

func isPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsGlobalUnicast() && !addr.IsPrivate() && !sharedAddressSpace.Contains(addr)
}

func (f *RefFetcher) readLocal(path string) ([]byte, error) {
	if f.localRoot == "" {
		return nil, fmt.Errorf("file:// refs are not enabled")
	}
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(f.localRoot, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("file ref %q is outside the image root", path)
	}
	file, err := os.Open(clean)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()
	return f.readLimited(file)
}

func (f *RefFetcher) decodeDataURI(ref string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("data uri must be base64 encoded")
	}
	if f.maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(payload))) > f.maxBytes+2 {
		return nil, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}
	return data, nil
}

func (f *RefFetcher) readLimited(r io.Reader) ([]byte, error) {
	if f.maxBytes > 0 {
		r = io.LimitReader(r, f.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}
	return data, nil
}

// detectImageType sniffs data and returns its mime type when it is an allowed image.
func detectImageType(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrUnsupportedImage)
	}
	mtype := mimetype.Detect(data)
	for _, allowed := range allowedImageTypes {
		if mtype.Is(allowed) {
			return allowed, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mtype.String())
}
