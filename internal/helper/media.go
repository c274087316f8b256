package helper

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"gowa-gateway/internal/model"
)

var ErrMediaTooLarge = errors.New("media exceeds the maximum attachment size")

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename strips any directory part and every character outside
// [a-zA-Z0-9._-].
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = path.Base(filename)
	filename = strings.ReplaceAll(filename, "..", "")
	filename = unsafeFilenameChars.ReplaceAllString(filename, "")
	if filename == "." || filename == "/" {
		return ""
	}
	return filename
}

// FetchMedia downloads rawURL into a MessageMedia. Bodies larger than
// maxBytes are rejected with ErrMediaTooLarge; maxBytes <= 0 disables the limit.
func FetchMedia(ctx context.Context, client *http.Client, rawURL string, maxBytes int64) (*model.MessageMedia, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid media url %q", rawURL)
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch media: unexpected status %d", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, ErrMediaTooLarge
	}

	mimeType := http.DetectContentType(data)
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil && parsed != "application/octet-stream" {
			mimeType = parsed
		}
	}
	return &model.MessageMedia{
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
		FileName: SanitizeFilename(u.Path),
		FileSize: len(data),
	}, nil
}
