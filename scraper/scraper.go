// Package scraper walks the paginated catalog and extracts book records.
//
// The walk is strictly sequential: the next page is only known after the
// current one is parsed, so exactly one fetch is in flight at a time. Any
// page-level failure ends the walk; records gathered up to that point are
// kept.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-books-api/config"
	"github.com/aluiziolira/go-books-api/models"
	"github.com/aluiziolira/go-books-api/parser"
	"github.com/aluiziolira/go-books-api/pipeline"
)

// Crawler drives the pagination walk over a colly collector.
type Crawler struct {
	cfg       *config.Config
	collector *colly.Collector
	visited   *lru.Cache[string, struct{}]
	Metrics   *Metrics

	mu           sync.Mutex
	records      []*models.BookRecord
	nextID       int
	failedURLs   []string
	errorsByType map[string]int
	errorCount   int
	requestCount int
	pageCount    int
	aborted      bool

	handlersOnce sync.Once
}

// NewCrawler builds a crawler configured from cfg.
func NewCrawler(cfg *config.Config) (*Crawler, error) {
	parsed, err := url.Parse(cfg.Crawler.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.Crawler.UserAgent),
	)

	collector.SetRequestTimeout(cfg.Crawler.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Crawler.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	// Fixed pacing between page fetches so the origin is not hammered.
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Crawler.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	visited, err := lru.New[string, struct{}](cfg.Crawler.VisitedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create visited cache: %w", err)
	}

	return &Crawler{
		cfg:          cfg,
		collector:    collector,
		visited:      visited,
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
	}, nil
}

// Run executes one full crawl, streaming each record through p as it is
// discovered. It returns the accumulated records even when the walk aborts
// early.
func (c *Crawler) Run(ctx context.Context, p *pipeline.Pipeline) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.configureHandlers(ctx, p)

	start := time.Now()
	c.visited.Add(normalizeVisitKey(c.cfg.Crawler.BaseURL), struct{}{})
	if err := c.collector.Visit(c.cfg.Crawler.BaseURL); err != nil {
		return nil, fmt.Errorf("initial visit: %w", err)
	}
	c.collector.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	records := make([]*models.BookRecord, len(c.records))
	copy(records, c.records)
	errorsByType := make(map[string]int, len(c.errorsByType))
	for k, v := range c.errorsByType {
		errorsByType[k] = v
	}
	failed := make([]string, len(c.failedURLs))
	copy(failed, c.failedURLs)

	return &models.CrawlResult{
		Records:      records,
		StartTime:    start,
		EndTime:      time.Now(),
		ErrorCount:   c.errorCount,
		FailedURLs:   failed,
		ErrorsByType: errorsByType,
		RequestCount: c.requestCount,
		PageCount:    c.pageCount,
		Aborted:      c.aborted,
	}, nil
}

func (c *Crawler) configureHandlers(ctx context.Context, p *pipeline.Pipeline) {
	c.handlersOnce.Do(func() {
		c.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			c.mu.Lock()
			c.requestCount++
			c.mu.Unlock()
			c.Metrics.IncRequest("started")
			slog.Debug("fetching page", slog.String("url", r.URL.String()))
		})

		c.collector.OnResponse(func(r *colly.Response) {
			c.mu.Lock()
			c.pageCount++
			c.mu.Unlock()
			c.Metrics.IncPages()
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				c.Metrics.ObserveDuration(time.Since(start))
			}
		})

		c.collector.OnError(func(r *colly.Response, err error) {
			statusCode := 0
			pageURL := ""
			if r != nil {
				statusCode = r.StatusCode
				if r.Request != nil && r.Request.URL != nil {
					pageURL = r.Request.URL.String()
				}
			}
			classified := classifyError(err, statusCode)
			category := errorTypeLabel(classified)

			c.mu.Lock()
			c.errorCount++
			c.errorsByType[category]++
			c.failedURLs = append(c.failedURLs, pageURL)
			c.aborted = true
			c.mu.Unlock()

			c.Metrics.IncError(category)
			slog.Error("page failed, ending crawl with partial results",
				slog.String("url", pageURL),
				slog.String("category", category),
				slog.Any("error", classified),
			)
		})

		// Item extraction runs before link discovery: handlers fire in
		// registration order, so every record on the page gets its id
		// before the next page is visited.
		c.collector.OnHTML(c.cfg.Selectors.Item, func(e *colly.HTMLElement) {
			record := c.extractRecord(e)
			c.mu.Lock()
			c.nextID++
			record.ID = c.nextID
			c.records = append(c.records, record)
			c.mu.Unlock()

			c.Metrics.IncRecords()
			if p != nil {
				if err := p.Process(record); err != nil && err != pipeline.ErrPipelineClosed {
					slog.Error("pipeline process error", slog.Any("error", err))
				}
			}
		})

		c.collector.OnHTML(c.cfg.Selectors.NextLink, func(e *colly.HTMLElement) {
			if ctx.Err() != nil {
				slog.Info("crawl canceled, stopping pagination")
				return
			}
			c.mu.Lock()
			pages := c.pageCount
			c.mu.Unlock()
			if pages >= c.cfg.Crawler.MaxPages {
				slog.Info("page limit reached, stopping pagination",
					slog.Int("pages", pages))
				return
			}

			next := c.absoluteURL(e, e.Attr("href"))
			if next == "" {
				return
			}
			key := normalizeVisitKey(next)
			if _, seen := c.visited.Get(key); seen {
				slog.Warn("pagination cycle detected, stopping",
					slog.String("url", next))
				return
			}
			c.visited.Add(key, struct{}{})
			if err := c.collector.Visit(next); err != nil {
				slog.Error("visit next page", slog.String("url", next), slog.Any("error", err))
			}
		})
	})
}

// extractRecord is total: a malformed fragment degrades field by field to
// the documented fallbacks, it never drops the item.
func (c *Crawler) extractRecord(e *colly.HTMLElement) *models.BookRecord {
	sel := c.cfg.Selectors

	title := parser.NormalizeTitle(e.ChildAttr(sel.TitleAnchor, "title"))
	detailURL := c.absoluteURL(e, e.ChildAttr(sel.TitleAnchor, "href"))
	price := parser.ParsePrice(e.ChildText(sel.Price))

	ratingWord := parser.RatingWordFromClass(e.ChildAttr(sel.Rating, "class"))
	rating := parser.RatingFromWord(ratingWord, sel.RatingWords)

	available := parser.Available(e.ChildText(sel.Availability), sel.InStockPhrase)
	imageURL := c.absoluteURL(e, e.ChildAttr(sel.Image, "src"))

	return &models.BookRecord{
		Title:        title,
		Price:        price,
		Rating:       rating,
		Availability: available,
		// The listing page carries no category marker; detail pages are
		// out of scope for the walk.
		Category:  parser.FallbackTitle,
		ImageURL:  imageURL,
		DetailURL: detailURL,
	}
}

// absoluteURL resolves ref against the page it was found on. A reference
// that cannot be resolved comes back unchanged rather than erroring.
func (c *Crawler) absoluteURL(e *colly.HTMLElement, ref string) string {
	if ref == "" {
		return ""
	}
	if abs := e.Request.AbsoluteURL(ref); abs != "" {
		return abs
	}
	return ref
}

// normalizeVisitKey collapses trivially-different spellings of the same page
// URL so the cycle guard catches them.
func normalizeVisitKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	key := u.String()
	return strings.TrimSuffix(key, "/")
}
