package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"videoinsight/internal/textutil"
)

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

var (
	xhsURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^https://www\.xiaohongshu\.com/(explore|discovery/item)/[a-zA-Z0-9]+`),
		regexp.MustCompile(`^https?://xhslink\.com/[a-zA-Z0-9/]+`),
	}
	xhsMediaPattern  = regexp.MustCompile(`"(?:masterUrl|play_url|url)":"(https?:[^"]+?\.mp4[^"]*)"`)
	xhsTitlePattern  = regexp.MustCompile(`"title":"([^"]+)"`)
	xhsAuthorPattern = regexp.MustCompile(`"nickname":"([^"]+)"`)
)

// maxPageBytes bounds how much of a share page is read.
const maxPageBytes = 8 << 20

// XiaohongshuDownloader resolves Xiaohongshu note pages to their video
// stream and downloads it.
type XiaohongshuDownloader struct {
	client *http.Client
	media  *HTTPDownloader
}

// NewXiaohongshuDownloader reuses media for the final video transfer.
func NewXiaohongshuDownloader(client *http.Client, media *HTTPDownloader) *XiaohongshuDownloader {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &XiaohongshuDownloader{client: client, media: media}
}

// Name identifies the downloader.
func (d *XiaohongshuDownloader) Name() string { return "xiaohongshu" }

// CanHandle accepts note and short-link URLs.
func (d *XiaohongshuDownloader) CanHandle(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	for _, p := range xhsURLPatterns {
		if p.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// Download fetches the note page, extracts the video URL and downloads it.
func (d *XiaohongshuDownloader) Download(ctx context.Context, rawURL, destDir string, progress ProgressFunc) (string, Info, error) {
	page, err := d.page(ctx, rawURL)
	if err != nil {
		return "", Info{}, err
	}
	mediaURL, info, err := parseNotePage(page)
	if err != nil {
		return "", Info{}, err
	}
	path, _, err := d.media.Download(ctx, mediaURL, destDir, progress)
	if err != nil {
		return "", Info{}, fmt.Errorf("download video stream: %w", err)
	}
	if name := textutil.SanitizeFileName(info.Title); name != "" {
		renamed := filepath.Join(filepath.Dir(path), name+filepath.Ext(path))
		if err := renameIfFree(path, renamed); err == nil {
			path = renamed
		}
	}
	return path, info, nil
}

func (d *XiaohongshuDownloader) page(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch note page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch note page: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read note page: %w", err)
	}
	return string(body), nil
}

func parseNotePage(page string) (string, Info, error) {
	info := Info{Title: "小红书视频", Author: "未知作者", Platform: "xiaohongshu"}
	if m := xhsTitlePattern.FindStringSubmatch(page); m != nil {
		info.Title = unescapeJSON(m[1])
	}
	if m := xhsAuthorPattern.FindStringSubmatch(page); m != nil {
		info.Author = unescapeJSON(m[1])
	}
	m := xhsMediaPattern.FindStringSubmatch(page)
	if m == nil {
		return "", info, errors.New("no video stream found in note page")
	}
	return unescapeJSON(m[1]), info, nil
}

// unescapeJSON decodes a JSON string body such as "https:\u002F\u002Fhost".
func unescapeJSON(value string) string {
	if decoded, err := strconv.Unquote(`"` + value + `"`); err == nil {
		return decoded
	}
	return strings.ReplaceAll(value, `\u002F`, "/")
}
