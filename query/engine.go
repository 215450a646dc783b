// Package query implements pure read queries over the current dataset
// snapshot. Every operation distinguishes "the service has no data" from
// "the query matched nothing" from "the request was malformed"; the HTTP
// layer translates those outcomes into status codes.
package query

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aluiziolira/go-books-api/dataset"
	"github.com/aluiziolira/go-books-api/models"
)

var (
	// ErrUnavailable signals that no dataset snapshot has been loaded.
	ErrUnavailable = errors.New("query: dataset unavailable")
	// ErrNotFound signals a valid lookup that matched no record.
	ErrNotFound = errors.New("query: record not found")
	// ErrInvalidInput signals a malformed query parameter.
	ErrInvalidInput = errors.New("query: invalid input")
)

// OverviewStats summarises the whole collection.
type OverviewStats struct {
	TotalBooks         int            `json:"total_books"`
	AveragePrice       float64        `json:"average_price"`
	RatingDistribution map[string]int `json:"rating_distribution"`
}

// CategoryStat summarises one category group.
type CategoryStat struct {
	CategoryName string  `json:"category_name"`
	BookCount    int     `json:"book_count"`
	AveragePrice float64 `json:"average_price"`
	TopRatedBook string  `json:"top_rated_book_in_category"`
}

// Engine answers read queries against whatever snapshot the store currently
// holds. It never mutates the snapshot.
type Engine struct {
	store *dataset.Store
}

// NewEngine builds an engine over store.
func NewEngine(store *dataset.Store) *Engine {
	return &Engine{store: store}
}

func (e *Engine) snapshot() (*dataset.Dataset, error) {
	d := e.store.Current()
	if d.IsEmpty() {
		return nil, ErrUnavailable
	}
	return d, nil
}

// All returns every record in dataset order.
func (e *Engine) All() ([]*models.BookRecord, error) {
	d, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return d.Records(), nil
}

// ByID returns the record with the given id.
func (e *Engine) ByID(id int) (*models.BookRecord, error) {
	d, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	record, ok := d.ByID(id)
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

// Search filters by case-insensitive title substring and case-insensitive
// exact category, AND-ed when both are given. With neither filter it
// returns all records. A query that matches nothing is a success with an
// empty list.
func (e *Engine) Search(title, category string) ([]*models.BookRecord, error) {
	d, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	title = strings.ToLower(strings.TrimSpace(title))
	category = strings.ToLower(strings.TrimSpace(category))

	matches := make([]*models.BookRecord, 0)
	for _, r := range d.Records() {
		if title != "" && !strings.Contains(strings.ToLower(r.Title), title) {
			continue
		}
		if category != "" && strings.ToLower(r.Category) != category {
			continue
		}
		matches = append(matches, r)
	}
	return matches, nil
}

// Categories returns the distinct non-empty category values, sorted
// ascending.
func (e *Engine) Categories() ([]string, error) {
	d, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, r := range d.Records() {
		if r.Category == "" {
			continue
		}
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		categories = append(categories, r.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

// Overview computes collection-wide statistics. The rating distribution
// always carries keys for 1 through 5 stars, zero-valued when no record has
// that rating.
func (e *Engine) Overview() (*OverviewStats, error) {
	d, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	records := d.Records()
	total := 0.0
	counts := make(map[int]int)
	for _, r := range records {
		total += r.Price
		counts[r.Rating]++
	}

	distribution := make(map[string]int, 5)
	for star := 1; star <= 5; star++ {
		distribution[fmt.Sprintf("%d_star", star)] = counts[star]
	}

	return &OverviewStats{
		TotalBooks:         len(records),
		AveragePrice:       round2(total / float64(len(records))),
		RatingDistribution: distribution,
	}, nil
}

// CategoryStats groups by category (excluding unset categories) and
// computes per-group count, mean price, and the top-rated title: highest
// rating wins, and among equally-rated books the cheapest wins. Groups come
// back sorted by category name.
func (e *Engine) CategoryStats() ([]CategoryStat, error) {
	d, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]*models.BookRecord)
	for _, r := range d.Records() {
		if r.Category == "" {
			continue
		}
		groups[r.Category] = append(groups[r.Category], r)
	}

	stats := make([]CategoryStat, 0, len(groups))
	for name, group := range groups {
		total := 0.0
		top := group[0]
		for _, r := range group {
			total += r.Price
			if r.Rating > top.Rating || (r.Rating == top.Rating && r.Price < top.Price) {
				top = r
			}
		}
		stats = append(stats, CategoryStat{
			CategoryName: name,
			BookCount:    len(group),
			AveragePrice: round2(total / float64(len(group))),
			TopRatedBook: top.Title,
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].CategoryName < stats[j].CategoryName
	})
	return stats, nil
}

// TopRated returns every record carrying the dataset's maximum rating,
// sorted by price ascending.
func (e *Engine) TopRated() ([]*models.BookRecord, error) {
	d, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	maxRating := 0
	for _, r := range d.Records() {
		if r.Rating > maxRating {
			maxRating = r.Rating
		}
	}

	top := make([]*models.BookRecord, 0)
	for _, r := range d.Records() {
		if r.Rating == maxRating {
			top = append(top, r)
		}
	}
	sort.Slice(top, func(i, j int) bool {
		return top[i].Price < top[j].Price
	})
	return top, nil
}

// ByPriceRange returns records with min <= price <= max, both bounds
// inclusive. min greater than max is a valid request that matches nothing.
func (e *Engine) ByPriceRange(min, max float64) ([]*models.BookRecord, error) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return nil, fmt.Errorf("%w: price bounds must be numbers", ErrInvalidInput)
	}

	d, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	matches := make([]*models.BookRecord, 0)
	for _, r := range d.Records() {
		if r.Price >= min && r.Price <= max {
			matches = append(matches, r)
		}
	}
	return matches, nil
}

// round2 rounds to exactly 2 decimal places, the precision of every price
// aggregate in the API.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
