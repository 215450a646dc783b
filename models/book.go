// Package models defines data structures shared by the crawler and the API.
package models

import "time"

// BookRecord is one catalog item in the flat dataset produced by a crawl run.
// IDs are assigned sequentially in discovery order starting at 1 and are only
// stable within a single run.
type BookRecord struct {
	ID           int     `csv:"id" json:"id"`
	Title        string  `csv:"title" json:"title"`
	Price        float64 `csv:"price" json:"price"`
	Rating       int     `csv:"rating" json:"rating"`
	Availability bool    `csv:"availability" json:"availability"`
	Category     string  `csv:"category" json:"category"`
	ImageURL     string  `csv:"image_url" json:"image_url"`
	DetailURL    string  `csv:"detail_url" json:"detail_url"`
}

// CrawlResult holds the overall outcome of one crawl run.
type CrawlResult struct {
	Records      []*BookRecord
	StartTime    time.Time
	EndTime      time.Time
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RequestCount int
	PageCount    int
	Aborted      bool
}
