package llmutils

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agenttools/pkg/httpclient"
)

// MaxImageSize is the largest image DownloadImageData accepts,
// it matches the 20 MiB per image limit of the OpenAI vision API.
const MaxImageSize = 20 << 20

// DownloadImageData downloads the content from the given URL and returns the
// MIME type and data.
func DownloadImageData(ctx context.Context, client httpclient.Doer, url string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to create request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to fetch image from url")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil, errors.Newf("failed to fetch image from url: %s", resp.Status)
	}

	if resp.ContentLength > MaxImageSize {
		return "", nil, errors.Newf("image exceeds %d bytes", MaxImageSize)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to read image bytes")
	}
	if len(data) > MaxImageSize {
		return "", nil, errors.Newf("image exceeds %d bytes", MaxImageSize)
	}

	mimeType, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	mimeType = strings.TrimSpace(mimeType)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", nil, errors.Newf("invalid mime type %q", mimeType)
	}

	return mimeType, data, nil
}

// DataURL returns base64 encoded data URL
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
