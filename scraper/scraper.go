// Package scraper crawls the catalog: it discovers categories from the site
// navigation, walks each category's listing pages, fetches and extracts every
// detail page, and retrieves cover images. Records are handed to a Sink per
// category in listing order.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-book-catalog/config"
	"github.com/aluiziolira/go-book-catalog/models"
	"github.com/aluiziolira/go-book-catalog/parser"
)

const (
	startKey = "start"
	slotKey  = "slot"
	pathKey  = "path"

	imageExt = ".jpg"
)

// Sink receives each crawled category's ordered records and provisions its
// image folder.
type Sink interface {
	ProvisionCategory(cat models.Category) (imageDir string, err error)
	ExportCategory(cat models.Category, records []*models.Book) error
}

// Scraper wraps the colly collectors and retry logic for the catalog site.
type Scraper struct {
	cfg       *config.Config
	extractor *parser.Extractor
	host      string
	root      string
	transport http.RoundTripper
	Metrics   *Metrics

	requestCount int64
	errorCount   int64
	retryTotal   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
}

// New builds a scraper instance configured from cfg.
func New(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	root := cfg.BaseURL
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Scraper{
		cfg:          cfg,
		extractor:    parser.NewExtractor(parsed.Host),
		host:         parsed.Host,
		root:         root,
		transport:    transport,
		Metrics:      NewMetrics(),
		errorsByType: make(map[string]int),
	}, nil
}

// Run crawls the whole catalog, routing each category's records to sink.
// Only a failure to resolve the site root itself is fatal; category and item
// failures are logged and skipped.
func (s *Scraper) Run(ctx context.Context, sink Sink) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	categories, err := s.DiscoverCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover categories: %w", err)
	}
	slog.Info("categories discovered", slog.Int("count", len(categories)))

	result := &models.CrawlResult{StartTime: start}
	for _, cat := range categories {
		if ctx.Err() != nil {
			break
		}
		result.Categories = append(result.Categories, s.processCategory(ctx, cat, sink))
	}

	result.EndTime = time.Now()
	result.RequestCount = int(atomic.LoadInt64(&s.requestCount))
	result.ErrorCount = int(atomic.LoadInt64(&s.errorCount))
	result.RetryCount = int(atomic.LoadInt64(&s.retryTotal))
	result.FailedURLs = s.snapshotFailedURLs()
	result.ErrorsByType = s.snapshotErrors()
	return result, nil
}

// DiscoverCategories fetches the site root and enumerates the category links
// of the primary navigation list.
func (s *Scraper) DiscoverCategories(ctx context.Context) ([]models.Category, error) {
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c, err := s.newCollector(false)
	if err != nil {
		return nil, err
	}
	s.instrument(c, "root")

	var (
		categories []models.Category
		fetchErr   error
	)
	c.OnHTML("html", func(e *colly.HTMLElement) {
		categories = s.extractor.CategoryLinks(e.DOM, e.Request.URL)
	})
	c.OnError(func(r *colly.Response, err error) {
		s.recordError(r, err)
		if fetchErr == nil {
			fetchErr = err
		}
	})

	if err := c.Visit(s.cfg.BaseURL); err != nil {
		return nil, err
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories found at %s", s.cfg.BaseURL)
	}
	return categories, nil
}

// processCategory crawls and exports one category. Failures abort only this
// category.
func (s *Scraper) processCategory(ctx context.Context, cat models.Category, sink Sink) models.CategoryResult {
	imageDir, err := sink.ProvisionCategory(cat)
	if err != nil {
		slog.Error("category provisioning failed",
			slog.String("category", cat.Name),
			slog.Any("error", err),
		)
		s.Metrics.IncCategory("failed")
		return models.CategoryResult{Name: cat.Name, Failed: true}
	}

	records, skipped, images, err := s.crawlCategory(ctx, cat, imageDir)
	if err != nil {
		slog.Error("category aborted",
			slog.String("category", cat.Name),
			slog.Any("error", err),
		)
		s.Metrics.IncCategory("failed")
		return models.CategoryResult{Name: cat.Name, Failed: true}
	}

	if err := sink.ExportCategory(cat, records); err != nil {
		slog.Error("category export failed",
			slog.String("category", cat.Name),
			slog.Any("error", err),
		)
		s.Metrics.IncCategory("failed")
		return models.CategoryResult{Name: cat.Name, Records: len(records), Skipped: skipped, Images: images, Failed: true}
	}

	s.Metrics.IncCategory("ok")
	slog.Info("category exported",
		slog.String("category", cat.Name),
		slog.Int("records", len(records)),
		slog.Int("skipped", skipped),
		slog.Int("images", images),
	)
	return models.CategoryResult{Name: cat.Name, Records: len(records), Skipped: skipped, Images: images}
}

// walkCategory follows a category's listing pages and returns the detail
// URLs in page order. Any listing failure aborts the walk.
func (s *Scraper) walkCategory(ctx context.Context, cat models.Category) ([]string, error) {
	c, err := s.newCollector(false)
	if err != nil {
		return nil, err
	}
	s.instrument(c, "listing")

	var (
		urls    []string
		pages   int
		walkErr error
	)
	c.OnHTML("html", func(e *colly.HTMLElement) {
		pages++
		urls = append(urls, s.extractor.ItemLinks(e.DOM, s.root)...)

		if pages >= s.cfg.MaxPages {
			return
		}
		next, ok := s.extractor.NextPageURL(e.DOM, e.Request.URL)
		if !ok {
			return
		}
		if ctx.Err() != nil {
			if walkErr == nil {
				walkErr = ctx.Err()
			}
			return
		}
		if err := c.Visit(next); err != nil && walkErr == nil {
			walkErr = err
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		s.recordError(r, err)
		if walkErr == nil {
			walkErr = err
		}
	})

	if err := c.Visit(cat.ListingURL); err != nil {
		return nil, err
	}
	c.Wait()

	if walkErr != nil {
		return nil, walkErr
	}
	return urls, nil
}

// crawlCategory fetches every detail page of one category in parallel,
// extracting records into index-addressed slots so listing order survives,
// and triggers the cover-image download for each record. A failed item skips
// only its own slot.
func (s *Scraper) crawlCategory(ctx context.Context, cat models.Category, imageDir string) ([]*models.Book, int, int, error) {
	urls, err := s.walkCategory(ctx, cat)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("walk %s: %w", cat.Name, err)
	}
	if len(urls) == 0 {
		return nil, 0, 0, nil
	}

	detail, err := s.newCollector(true)
	if err != nil {
		return nil, 0, 0, err
	}
	s.instrument(detail, "detail")

	images, err := s.newCollector(true)
	if err != nil {
		return nil, 0, 0, err
	}
	s.instrument(images, "image")

	var imageCount int64
	images.OnResponse(func(r *colly.Response) {
		path := r.Ctx.Get(pathKey)
		if path == "" || r.StatusCode != http.StatusOK {
			return
		}
		if err := r.Save(path); err != nil {
			slog.Debug("image save failed",
				slog.String("path", path),
				slog.Any("error", err),
			)
			return
		}
		atomic.AddInt64(&imageCount, 1)
		s.Metrics.IncImages()
	})
	images.OnError(func(r *colly.Response, err error) {
		target := ""
		if r != nil && r.Request != nil && r.Request.URL != nil {
			target = r.Request.URL.String()
		}
		slog.Debug("image fetch skipped",
			slog.String("url", target),
			slog.Any("error", err),
		)
	})

	slots := make([]*models.Book, len(urls))
	retry := newRetryQueue(s.cfg, s.Metrics)

	detail.OnHTML("html", func(e *colly.HTMLElement) {
		idx, ok := e.Request.Ctx.GetAny(slotKey).(int)
		if !ok || idx < 0 || idx >= len(slots) {
			return
		}

		book, err := s.extractor.Extract(e.DOM, e.Request.URL.String())
		if err != nil {
			label := errorTypeLabel(err)
			s.noteError(label)
			s.Metrics.IncSkipped(label)
			slog.Warn("skipping item",
				slog.String("category", cat.Name),
				slog.String("url", e.Request.URL.String()),
				slog.Any("error", err),
			)
			return
		}

		book.CrawledCategory = cat.Name
		if book.Category != cat.Name {
			s.Metrics.IncMismatch()
			slog.Warn("breadcrumb disagrees with crawled category",
				slog.String("crawled", cat.Name),
				slog.String("breadcrumb", book.Category),
				slog.String("url", book.URL),
			)
		}

		slots[idx] = book
		s.Metrics.IncItems()
		s.requestImage(images, imageDir, book)
	})
	detail.OnError(func(r *colly.Response, err error) {
		s.recordError(r, err)
		if r != nil {
			retry.Add(r.Request)
		}
	})

	for i, u := range urls {
		if ctx.Err() != nil {
			break
		}
		rctx := colly.NewContext()
		rctx.Put(slotKey, i)
		if err := detail.Request(http.MethodGet, u, nil, rctx, nil); err != nil {
			slog.Warn("detail request",
				slog.String("url", u),
				slog.Any("error", err),
			)
		}
	}
	detail.Wait()
	retry.Drain(ctx, detail)
	atomic.AddInt64(&s.retryTotal, int64(retry.TotalRetries()))
	for _, req := range retry.Take() {
		s.noteFailedURL(req.URL.String())
	}

	images.Wait()

	records := make([]*models.Book, 0, len(urls))
	for _, b := range slots {
		if b != nil {
			records = append(records, b)
		}
	}
	skipped := len(urls) - len(records)
	return records, skipped, int(atomic.LoadInt64(&imageCount)), nil
}

// requestImage fetches a record's cover over plain HTTP. The image host is
// referenced without a scheme, so one is forced. Failures are skipped.
func (s *Scraper) requestImage(c *colly.Collector, imageDir string, book *models.Book) {
	filename := parser.SanitizeName(book.Title) + imageExt
	rctx := colly.NewContext()
	rctx.Put(pathKey, filepath.Join(imageDir, filename))
	if err := c.Request(http.MethodGet, "http://"+book.ImageURL, nil, rctx, nil); err != nil {
		slog.Debug("image request",
			slog.String("url", book.ImageURL),
			slog.Any("error", err),
		)
	}
}

func (s *Scraper) newCollector(async bool) (*colly.Collector, error) {
	opts := []colly.CollectorOption{
		colly.AllowedDomains(s.host),
		colly.UserAgent(s.cfg.UserAgent),
	}
	if async {
		opts = append(opts, colly.Async(true))
	}

	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(s.cfg.Timeout)
	c.WithTransport(s.transport)

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: s.cfg.Parallelism,
		Delay:       s.cfg.Delay,
		RandomDelay: s.cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}
	return c, nil
}

func (s *Scraper) instrument(c *colly.Collector, kind string) {
	c.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(startKey, time.Now())
		atomic.AddInt64(&s.requestCount, 1)
		s.Metrics.IncRequest(kind)
	})
	c.OnResponse(func(r *colly.Response) {
		if r.StatusCode >= http.StatusBadRequest {
			slog.Error("non-2xx response",
				slog.Int("status", r.StatusCode),
				slog.String("url", r.Request.URL.String()),
			)
		}
		if start, ok := r.Ctx.GetAny(startKey).(time.Time); ok {
			s.Metrics.ObserveDuration(time.Since(start))
		}
	})
}

func (s *Scraper) recordError(r *colly.Response, err error) {
	atomic.AddInt64(&s.errorCount, 1)
	statusCode := 0
	if r != nil {
		statusCode = r.StatusCode
	}
	label := errorTypeLabel(classifyError(err, statusCode))
	s.noteError(label)

	target := ""
	if r != nil && r.Request != nil && r.Request.URL != nil {
		target = r.Request.URL.String()
	}
	slog.Error("request error",
		slog.String("url", target),
		slog.String("category", label),
		slog.Any("error", err),
	)
	s.Metrics.IncError(label)
}

func (s *Scraper) noteError(label string) {
	s.mu.Lock()
	s.errorsByType[label]++
	s.mu.Unlock()
}

func (s *Scraper) noteFailedURL(url string) {
	s.mu.Lock()
	s.failedURLs = append(s.failedURLs, url)
	s.mu.Unlock()
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
