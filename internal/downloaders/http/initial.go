package pdlhttp

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/pdl/internal/utils"
)

// Probe asks the server what it knows about link without fetching the body.
// A 405 to the HEAD request returns ErrProbeFallback unless a one-byte
// ranged GET can recover the same information.
func Probe(ctx context.Context, client utils.HTTPDoer, link string, timeout time.Duration) (utils.CapabilityInfo, error) {
	parsedURL, err := url.Parse(link)
	if err != nil {
		return utils.CapabilityInfo{}, fmt.Errorf("%w: invalid URL: %w", ErrProbe, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return utils.CapabilityInfo{}, fmt.Errorf("%w: unsupported scheme: %s", ErrProbe, parsedURL.Scheme)
	}
	if timeout <= 0 {
		timeout = utils.DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return utils.CapabilityInfo{}, fmt.Errorf("%w: error creating request: %w", ErrProbe, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return utils.CapabilityInfo{}, fmt.Errorf("%w: %w", ErrProbe, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return infoFromHead(resp)
	case http.StatusMethodNotAllowed:
		log.Debug().Str("op", "http/probe").Str("url", link).Msg("HEAD not allowed, trying ranged GET")
		return probeWithRangedGet(ctx, client, link)
	default:
		return utils.CapabilityInfo{}, &ProbeStatusError{StatusCode: resp.StatusCode}
	}
}

func infoFromHead(resp *http.Response) (utils.CapabilityInfo, error) {
	contentLength := strings.TrimSpace(resp.Header.Get("Content-Length"))
	size, err := strconv.ParseInt(contentLength, 10, 64)
	if contentLength == "" || err != nil || size < 0 {
		return utils.CapabilityInfo{}, fmt.Errorf("%w: cannot determine file size", ErrProbe)
	}
	info := utils.CapabilityInfo{
		TotalSize:         size,
		ContentType:       contentType(resp),
		SuggestedFileName: suggestedFileName(resp),
		SupportsRange:     strings.EqualFold(strings.TrimSpace(resp.Header.Get("Accept-Ranges")), "bytes"),
	}
	log.Debug().Str("op", "http/probe").Int64("size", info.TotalSize).Bool("ranges", info.SupportsRange).Str("name", info.SuggestedFileName).Msg("Probe complete")
	return info, nil
}

// probeWithRangedGet learns the size from the Content-Range of a one-byte
// request. The body is never read beyond that byte.
func probeWithRangedGet(ctx context.Context, client utils.HTTPDoer, link string) (utils.CapabilityInfo, error) {
	fallback := utils.CapabilityInfo{
		TotalSize:         -1,
		ContentType:       utils.DefaultContentType,
		SuggestedFileName: utils.FileNameFromURL(link),
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fallback, ErrProbeFallback
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := client.Do(req)
	if err != nil {
		return fallback, fmt.Errorf("%w: %w", ErrProbeFallback, err)
	}
	defer resp.Body.Close()

	fallback.ContentType = contentType(resp)
	fallback.SuggestedFileName = suggestedFileName(resp)
	switch resp.StatusCode {
	case http.StatusPartialContent:
		if _, _, total, err := parseContentRange(resp.Header.Get("Content-Range")); err == nil && total >= 0 {
			fallback.TotalSize = total
			fallback.SupportsRange = true
			return fallback, nil
		}
	case http.StatusOK:
		if resp.ContentLength >= 0 {
			fallback.TotalSize = resp.ContentLength
			return fallback, nil
		}
	}
	return fallback, ErrProbeFallback
}

func contentType(resp *http.Response) string {
	if ct := strings.TrimSpace(resp.Header.Get("Content-Type")); ct != "" {
		return ct
	}
	return utils.DefaultContentType
}

// suggestedFileName prefers Content-Disposition and falls back to the last
// segment of the final, post-redirect URL.
func suggestedFileName(resp *http.Response) string {
	if name := fileNameFromDisposition(resp.Header.Get("Content-Disposition")); name != "" {
		return name
	}
	final := resp.Request
	if final != nil && final.URL != nil {
		return utils.FileNameFromURL(final.URL.String())
	}
	return ""
}

func fileNameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	name := ""
	if _, params, err := mime.ParseMediaType(header); err == nil {
		name = params["filename"]
	}
	if name == "" {
		name = scanFileNameToken(header)
	}
	name = filepath.Base(strings.TrimSpace(strings.ReplaceAll(name, "\\", "/")))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// scanFileNameToken handles headers mime cannot parse, such as unquoted
// names containing spaces.
func scanFileNameToken(header string) string {
	idx := strings.Index(strings.ToLower(header), "filename=")
	if idx < 0 {
		return ""
	}
	value := header[idx+len("filename="):]
	if semi := strings.IndexByte(value, ';'); semi >= 0 {
		value = value[:semi]
	}
	return strings.TrimSpace(strings.ReplaceAll(value, `"`, ""))
}

// IsFallback reports whether err only means the size could not be learned.
func IsFallback(err error) bool {
	return errors.Is(err, ErrProbeFallback)
}
