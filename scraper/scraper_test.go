package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-books-api/config"
	"github.com/aluiziolira/go-books-api/models"
	"github.com/aluiziolira/go-books-api/pipeline"
)

const (
	page1HTML = `<html><body>
<article class="product_pod">
  <p class="star-rating Three"><i></i></p>
  <h3><a href="catalogue/a-light-in-the-attic_1/index.html" title="A Light in the Attic">A Light in ...</a></h3>
  <div class="image_container"><img src="media/cache/light.jpg" alt=""></div>
  <p class="price_color">£51.77</p>
  <p class="instock availability">In stock (22 available)</p>
</article>
<article class="product_pod">
  <p class="star-rating One"><i></i></p>
  <h3><a href="catalogue/tipping-the-velvet_2/index.html" title="Tipping the Velvet">Tipping the ...</a></h3>
  <div class="image_container"><img src="media/cache/velvet.jpg" alt=""></div>
  <p class="price_color">£53.74</p>
  <p class="instock availability">In stock (20 available)</p>
</article>
<ul class="pager"><li class="next"><a href="catalogue/page-2.html">next</a></li></ul>
</body></html>`

	page2HTML = `<html><body>
<article class="product_pod">
  <p class="star-rating Five"><i></i></p>
  <h3><a href="soumission_3/index.html" title="Soumission">Soumission</a></h3>
  <div class="image_container"><img src="../media/cache/soumission.jpg" alt=""></div>
  <p class="price_color">£50.10</p>
  <p class="instock availability">Out of stock</p>
</article>
</body></html>`
)

type collectingWriter struct {
	mu      sync.Mutex
	records []*models.BookRecord
}

func (w *collectingWriter) Write(records []*models.BookRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, records...)
	return nil
}

func (w *collectingWriter) Close() error    { return nil }
func (w *collectingWriter) Validate() error { return nil }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Crawler.BaseURL = "http://example.test/"
	cfg.Crawler.Delay = 0
	cfg.Crawler.MaxPages = 10
	cfg.Crawler.BatchSize = 1
	return cfg
}

func newTestCrawler(t *testing.T, cfg *config.Config) (*Crawler, *httpmock.MockTransport) {
	t.Helper()
	c, err := NewCrawler(cfg)
	if err != nil {
		t.Fatalf("new crawler: %v", err)
	}
	transport := httpmock.NewMockTransport()
	c.collector.WithTransport(transport)
	return c, transport
}

func registerPage(transport *httpmock.MockTransport, url, html string) {
	responder := httpmock.NewStringResponder(http.StatusOK, html)
	responder = responder.HeaderSet(http.Header{"Content-Type": []string{"text/html"}})
	transport.RegisterResponder("GET", url, responder)
	transport.RegisterResponder("GET", strings.TrimSuffix(url, "/"), responder)
}

func TestCrawlTwoPages(t *testing.T) {
	cfg := testConfig()
	c, transport := newTestCrawler(t, cfg)
	registerPage(transport, "http://example.test/", page1HTML)
	registerPage(transport, "http://example.test/catalogue/page-2.html", page2HTML)

	result, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Aborted {
		t.Fatal("crawl should not abort")
	}
	if result.PageCount != 2 {
		t.Fatalf("pages = %d, want 2", result.PageCount)
	}
	if len(result.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(result.Records))
	}

	for i, record := range result.Records {
		if record.ID != i+1 {
			t.Errorf("record %d has id %d, want %d", i, record.ID, i+1)
		}
	}

	first := result.Records[0]
	if first.Title != "A Light in the Attic" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Price != 51.77 {
		t.Errorf("price = %v, want 51.77", first.Price)
	}
	if first.Rating != 3 {
		t.Errorf("rating = %d, want 3", first.Rating)
	}
	if !first.Availability {
		t.Error("first record should be in stock")
	}
	if first.Category != "N/A" {
		t.Errorf("category = %q, want N/A", first.Category)
	}
	if first.DetailURL != "http://example.test/catalogue/a-light-in-the-attic_1/index.html" {
		t.Errorf("detail url = %q", first.DetailURL)
	}
	if first.ImageURL != "http://example.test/media/cache/light.jpg" {
		t.Errorf("image url = %q", first.ImageURL)
	}

	third := result.Records[2]
	if third.Rating != 5 {
		t.Errorf("third rating = %d, want 5", third.Rating)
	}
	if third.Availability {
		t.Error("third record should be out of stock")
	}
	// Relative links on page 2 resolve against page 2, not the base.
	if third.DetailURL != "http://example.test/catalogue/soumission_3/index.html" {
		t.Errorf("third detail url = %q", third.DetailURL)
	}
	if third.ImageURL != "http://example.test/media/cache/soumission.jpg" {
		t.Errorf("third image url = %q", third.ImageURL)
	}
}

func TestCrawlPartialFailureKeepsRecords(t *testing.T) {
	cfg := testConfig()
	c, transport := newTestCrawler(t, cfg)
	registerPage(transport, "http://example.test/", page1HTML)
	transport.RegisterResponder("GET", "http://example.test/catalogue/page-2.html",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	result, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !result.Aborted {
		t.Fatal("crawl should report abort")
	}
	if len(result.Records) != 2 {
		t.Fatalf("records = %d, want 2 (partial results kept)", len(result.Records))
	}
	if result.Records[0].ID != 1 || result.Records[1].ID != 2 {
		t.Fatalf("ids = %d,%d, want 1,2", result.Records[0].ID, result.Records[1].ID)
	}
	if result.ErrorCount != 1 {
		t.Fatalf("error count = %d, want 1", result.ErrorCount)
	}
	if len(result.FailedURLs) != 1 {
		t.Fatalf("failed urls = %v", result.FailedURLs)
	}
}

func TestCrawlCycleGuard(t *testing.T) {
	cyclePage := strings.Replace(page2HTML, "</body>",
		`<ul class="pager"><li class="next"><a href="http://example.test/">next</a></li></ul></body>`, 1)

	cfg := testConfig()
	c, transport := newTestCrawler(t, cfg)
	registerPage(transport, "http://example.test/", page1HTML)
	registerPage(transport, "http://example.test/catalogue/page-2.html", cyclePage)

	result, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// The next link on page 2 points back at the start page; the walk
	// must terminate instead of looping.
	if result.PageCount != 2 {
		t.Fatalf("pages = %d, want 2", result.PageCount)
	}
	if len(result.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(result.Records))
	}
	if result.Aborted {
		t.Fatal("cycle termination is not an abort")
	}
}

func TestCrawlRespectsMaxPages(t *testing.T) {
	cfg := testConfig()
	cfg.Crawler.MaxPages = 1
	c, transport := newTestCrawler(t, cfg)
	registerPage(transport, "http://example.test/", page1HTML)
	registerPage(transport, "http://example.test/catalogue/page-2.html", page2HTML)

	result, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.PageCount != 1 {
		t.Fatalf("pages = %d, want 1", result.PageCount)
	}
	if len(result.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(result.Records))
	}
}

func TestExtractionIsTotal(t *testing.T) {
	emptyItemPage := `<html><body><article class="product_pod"></article></body></html>`

	cfg := testConfig()
	c, transport := newTestCrawler(t, cfg)
	registerPage(transport, "http://example.test/", emptyItemPage)

	result, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("records = %d, want 1 (malformed fragment still yields a record)", len(result.Records))
	}

	record := result.Records[0]
	if record.ID != 1 {
		t.Errorf("id = %d, want 1", record.ID)
	}
	if record.Title != "N/A" {
		t.Errorf("title fallback = %q, want N/A", record.Title)
	}
	if record.Price != 0.0 {
		t.Errorf("price fallback = %v, want 0.0", record.Price)
	}
	if record.Rating != 0 {
		t.Errorf("rating fallback = %d, want 0", record.Rating)
	}
	if record.Availability {
		t.Error("availability fallback must be false")
	}
	if record.ImageURL != "" || record.DetailURL != "" {
		t.Errorf("url fallbacks = %q, %q, want empty", record.ImageURL, record.DetailURL)
	}
}

func TestEmptyPageIsNotAnError(t *testing.T) {
	cfg := testConfig()
	c, transport := newTestCrawler(t, cfg)
	registerPage(transport, "http://example.test/", `<html><body><p>nothing here</p></body></html>`)

	result, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Aborted {
		t.Fatal("a page with zero items is not a failure")
	}
	if len(result.Records) != 0 {
		t.Fatalf("records = %d, want 0", len(result.Records))
	}
}

func TestCrawlStreamsThroughPipeline(t *testing.T) {
	cfg := testConfig()
	c, transport := newTestCrawler(t, cfg)
	registerPage(transport, "http://example.test/", page1HTML)
	registerPage(transport, "http://example.test/catalogue/page-2.html", page2HTML)

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(writer, cfg)
	p.Start(1)

	result, err := c.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("pipeline close: %v", err)
	}

	if len(result.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(result.Records))
	}
	writer.mu.Lock()
	defer writer.mu.Unlock()
	if len(writer.records) != 3 {
		t.Fatalf("written records = %d, want 3", len(writer.records))
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: nil, statusCode: http.StatusInternalServerError, expected: "http_status"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestNormalizeVisitKey(t *testing.T) {
	tests := []struct {
		name    string
		a       string
		b       string
		sameKey bool
	}{
		{name: "trailing slash", a: "http://example.test/", b: "http://example.test", sameKey: true},
		{name: "fragment", a: "http://example.test/page#top", b: "http://example.test/page", sameKey: true},
		{name: "host case", a: "http://EXAMPLE.test/page", b: "http://example.test/page", sameKey: true},
		{name: "different paths", a: "http://example.test/a", b: "http://example.test/b", sameKey: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeVisitKey(tt.a) == normalizeVisitKey(tt.b)
			if got != tt.sameKey {
				t.Errorf("normalizeVisitKey(%q) == normalizeVisitKey(%q): %v, want %v", tt.a, tt.b, got, tt.sameKey)
			}
		})
	}
}
