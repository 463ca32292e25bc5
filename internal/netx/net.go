// Package netx holds the raw network primitives: a bounded TCP reachability
// check and streaming uploads to presigned object-storage URLs.
package netx

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// httpClient is a seam for tests.
var httpClient = &http.Client{}

// dialContext is a seam for tests.
var dialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}

// CanDial reports whether a TCP handshake with addr completes within timeout.
// It never fails; any error counts as unreachable.
func CanDial(ctx context.Context, addr string, timeout time.Duration) bool {
	if addr == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// UploadToPresignedURL streams body to url with a PUT request. size must be
// the exact body length; S3-compatible stores reject chunked uploads on
// presigned URLs.
func UploadToPresignedURL(ctx context.Context, url string, body io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return err
	}
	req.ContentLength = size
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
