package model

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tauraamui/tennistrack/pkg/log"
	"github.com/tauraamui/xerror"
)

var ErrInterstitial = xerror.New("remote returned a web page instead of the model file")

// interstitial pages are small, anything larger is not worth parsing
const maxInterstitialBytes = 2 << 20

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, dst io.Writer) (int64, error)
}

type FetcherFunc func(ctx context.Context, rawURL string, dst io.Writer) (int64, error)

func (f FetcherFunc) Fetch(ctx context.Context, rawURL string, dst io.Writer) (int64, error) {
	return f(ctx, rawURL, dst)
}

// HTTPFetcher downloads over HTTP(S). Large Google Drive files are served
// behind a "can't scan for viruses" page; the real download link is taken
// from that page and followed once.
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f HTTPFetcher) Fetch(ctx context.Context, rawURL string, dst io.Writer) (int64, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return 0, err
	}

	if isHTML(resp) {
		page, err := io.ReadAll(io.LimitReader(resp.Body, maxInterstitialBytes))
		resp.Body.Close()
		if err != nil {
			return 0, xerror.Errorf("unable to read %s: %w", rawURL, err)
		}

		next, err := confirmURL(page, resp.Request.URL)
		if err != nil {
			return 0, err
		}
		log.Debug("Following download confirmation link: %s", next)

		resp, err = f.get(ctx, next)
		if err != nil {
			return 0, err
		}
		if isHTML(resp) {
			resp.Body.Close()
			return 0, xerror.Errorf("%s: %w", next, ErrInterstitial)
		}
	}
	defer resp.Body.Close()

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return n, xerror.Errorf("download of %s interrupted: %w", rawURL, err)
	}
	return n, nil
}

func (f HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, xerror.Errorf("invalid model url %q: %w", rawURL, err)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, xerror.Errorf("unable to fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, xerror.Errorf("unable to fetch %s: unexpected status %s", rawURL, resp.Status)
	}
	return resp, nil
}

func isHTML(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mediaType == "text/html"
}

// confirmURL finds the real download link on a Drive interstitial page.
// Newer pages carry a GET form with hidden inputs, older ones a plain
// link with a confirm token.
func confirmURL(page []byte, base *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", xerror.Errorf("unable to parse download page: %w", err)
	}

	if form := doc.Find("form#download-form").First(); form.Length() > 0 {
		action, _ := form.Attr("action")
		target, err := resolve(base, action)
		if err != nil {
			return "", err
		}
		q := target.Query()
		form.Find("input[type=hidden]").Each(func(_ int, input *goquery.Selection) {
			name, ok := input.Attr("name")
			if !ok || name == "" {
				return
			}
			value, _ := input.Attr("value")
			q.Set(name, value)
		})
		target.RawQuery = q.Encode()
		return target.String(), nil
	}

	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.Contains(href, "confirm=") {
			link = href
			return false
		}
		return true
	})
	if link == "" {
		return "", ErrInterstitial
	}

	target, err := resolve(base, link)
	if err != nil {
		return "", err
	}
	return target.String(), nil
}

func resolve(base *url.URL, ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, xerror.Errorf("invalid download link %q: %w", ref, err)
	}
	if base == nil {
		return u, nil
	}
	return base.ResolveReference(u), nil
}
