// Package offline fronts outbound HTTP with a generational response cache so the
// agent keeps serving its shell and last-known API reads while the network is down.
package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/munnerz/goautoneg"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// APICacheName is the generation that holds remote API reads. It survives every activation.
const APICacheName = "api-cache-v1"

// HeaderCache marks responses that were served from storage or synthesized.
const HeaderCache = "X-Offline-Cache"

var ErrNotInstalled = errors.New("no cache generation installed")

// Manifest lists the assets of one deployment.
type Manifest struct {
	Version   string
	Assets    []string
	EntryPage string
}

// Generation is the storage name for the manifest's assets.
func (m Manifest) Generation() string {
	return "static-" + m.Version
}

// InstallReport says which assets made it into the new generation.
type InstallReport struct {
	Generation string
	Cached     []string
	Failed     []string
}

// Cache is an http.RoundTripper. Requests to API hosts are split by method;
// navigations fall back to the cached entry page; everything else is network-first.
type Cache struct {
	next     http.RoundTripper
	store    Storage
	apiHosts map[string]struct{}
	clock    func() time.Time

	mu        sync.RWMutex
	active    string
	entryPage string
	pending   *Manifest
}

// New wraps next. A nil next uses http.DefaultTransport.
func New(next http.RoundTripper, store Storage, apiHosts []string) *Cache {
	if next == nil {
		next = http.DefaultTransport
	}
	hosts := make(map[string]struct{}, len(apiHosts))
	for _, h := range apiHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts[h] = struct{}{}
		}
	}
	return &Cache{next: next, store: store, apiHosts: hosts, clock: time.Now}
}

// Install fetches every asset of the manifest into a new generation. A failed asset is
// logged and skipped; only storage errors abort the install.
func (c *Cache) Install(ctx context.Context, manifest Manifest) (InstallReport, error) {
	gen := manifest.Generation()
	assets := manifest.Assets
	if manifest.EntryPage != "" && !contains(assets, manifest.EntryPage) {
		assets = append(append([]string(nil), assets...), manifest.EntryPage)
	}

	var mu sync.Mutex
	report := InstallReport{Generation: gen}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, asset := range assets {
		asset := asset
		g.Go(func() error {
			entry, err := c.fetchAsset(gctx, asset)
			if err != nil {
				logrus.WithFields(logrus.Fields{"asset": asset, "generation": gen, "error": err}).Warn("asset not cached")
				mu.Lock()
				report.Failed = append(report.Failed, asset)
				mu.Unlock()
				return nil
			}
			if err := c.store.Put(gctx, gen, asset, entry); err != nil {
				return fmt.Errorf("store %s: %w", asset, err)
			}
			mu.Lock()
			report.Cached = append(report.Cached, asset)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	c.mu.Lock()
	m := manifest
	c.pending = &m
	c.mu.Unlock()
	return report, nil
}

// Activate makes the last installed generation current and drops every other
// generation except the API cache.
func (c *Cache) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return ErrNotInstalled
	}
	gen := c.pending.Generation()
	c.active = gen
	c.entryPage = c.pending.EntryPage
	c.pending = nil
	c.mu.Unlock()

	names, err := c.store.Generations(ctx)
	if err != nil {
		return fmt.Errorf("list generations: %w", err)
	}
	for _, name := range names {
		if name == gen || name == APICacheName {
			continue
		}
		if err := c.store.DropGeneration(ctx, name); err != nil {
			return fmt.Errorf("drop generation %s: %w", name, err)
		}
	}
	return nil
}

// Active returns the current generation, empty before the first activation.
func (c *Cache) Active() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

func (c *Cache) RoundTrip(req *http.Request) (*http.Response, error) {
	switch {
	case c.isAPI(req) && req.Method == http.MethodGet:
		return c.apiRead(req)
	case c.isAPI(req):
		return c.apiMutation(req)
	case isNavigation(req):
		return c.navigate(req)
	default:
		return c.networkFirst(req)
	}
}

func (c *Cache) apiRead(req *http.Request) (*http.Response, error) {
	resp, err := c.next.RoundTrip(req)
	if err == nil {
		resp, err = c.keep(req, APICacheName, resp)
	}
	if err == nil {
		return resp, nil
	}
	if cached, ok := c.match(req, req.URL.String()); ok {
		return cached, nil
	}
	return nil, err
}

// apiMutation is attempted once and never cached.
func (c *Cache) apiMutation(req *http.Request) (*http.Response, error) {
	resp, err := c.next.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	logrus.WithFields(logrus.Fields{"method": req.Method, "url": req.URL.String(), "error": err}).Warn("mutation not sent")
	return unavailable(req), nil
}

func (c *Cache) navigate(req *http.Request) (*http.Response, error) {
	resp, err := c.next.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	c.mu.RLock()
	entry := c.entryPage
	c.mu.RUnlock()
	if entry != "" {
		if cached, ok := c.match(req, entry); ok {
			return cached, nil
		}
	}
	return nil, err
}

func (c *Cache) networkFirst(req *http.Request) (*http.Response, error) {
	resp, err := c.next.RoundTrip(req)
	if err == nil && req.Method != http.MethodGet {
		return resp, nil
	}
	if err == nil {
		resp, err = c.keep(req, c.Active(), resp)
	}
	if err == nil {
		return resp, nil
	}
	if req.Method == http.MethodGet {
		if cached, ok := c.match(req, req.URL.String()); ok {
			return cached, nil
		}
	}
	return unavailable(req), nil
}

// keep stores a copy of a 2xx response in gen and hands back an unread equivalent.
// A body that cannot be read in full is an error; the partial response is discarded.
func (c *Cache) keep(req *http.Request, gen string, resp *http.Response) (*http.Response, error) {
	if gen == "" || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		logrus.WithFields(logrus.Fields{"url": req.URL.String(), "error": err}).Warn("response body truncated")
		return nil, fmt.Errorf("read %s: %w", req.URL, err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	entry := Entry{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body, StoredAt: c.clock()}
	if err := c.store.Put(req.Context(), gen, req.URL.String(), entry); err != nil {
		logrus.WithFields(logrus.Fields{"url": req.URL.String(), "generation": gen, "error": err}).Warn("response not cached")
	}
	return resp, nil
}

// match looks a URL up in the API cache and the active generation, never an older one.
func (c *Cache) match(req *http.Request, url string) (*http.Response, bool) {
	for _, gen := range []string{APICacheName, c.Active()} {
		if gen == "" {
			continue
		}
		entry, ok, err := c.store.Get(req.Context(), gen, url)
		if err != nil {
			logrus.WithFields(logrus.Fields{"url": url, "generation": gen, "error": err}).Warn("cache lookup failed")
			continue
		}
		if ok {
			return entry.response(req), true
		}
	}
	return nil, false
}

func (c *Cache) fetchAsset(ctx context.Context, asset string) (Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset, nil)
	if err != nil {
		return Entry{}, err
	}
	resp, err := c.next.RoundTrip(req)
	if err != nil {
		return Entry{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Entry{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body, StoredAt: c.clock()}, nil
}

func (c *Cache) isAPI(req *http.Request) bool {
	if req.URL == nil {
		return false
	}
	_, ok := c.apiHosts[strings.ToLower(req.URL.Host)]
	return ok
}

func isNavigation(req *http.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	accept := req.Header.Get("Accept")
	if accept == "" {
		return false
	}
	clauses := goautoneg.ParseAccept(accept)
	return len(clauses) > 0 && clauses[0].Type == "text" && clauses[0].SubType == "html"
}

func (e Entry) response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(HeaderCache, "hit")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

func unavailable(req *http.Request) *http.Response {
	body := []byte(`{"error":"offline: request not sent"}`)
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set(HeaderCache, "synthesized")
	return &http.Response{
		Status:        "503 Service Unavailable",
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
