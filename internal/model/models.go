// Package model defines shared data structures for the news digest service.
package model

import "time"

// WebsiteConfig is one tracked news source. Name is the display name and is
// used as the Source of every article fetched from the site.
type WebsiteConfig struct {
	URL     string `yaml:"url" json:"url"`
	Name    string `yaml:"name" json:"name"`
	BaseURL string `yaml:"base_url" json:"baseUrl"`
}

// Candidate is an assembled article that has not been persisted yet.
type Candidate struct {
	Title            string `json:"title"`
	Link             string `json:"link"`
	PublishedDate    string `json:"date"`
	Author           string `json:"author"`
	Summary          string `json:"summary"`
	Source           string `json:"source"`
	DiscussionPoints string `json:"discussionPoints"`
}

// Article is the durable record. At most one Article exists per
// (Source, Title); ID, CreatedAt and DateGroup never change after insert.
type Article struct {
	ID               string    `json:"id" bson:"_id"`
	Title            string    `json:"title" bson:"title"`
	Link             string    `json:"link" bson:"link"`
	PublishedDate    string    `json:"date" bson:"date"`
	Author           string    `json:"author" bson:"author"`
	Summary          string    `json:"summary" bson:"summary"`
	Source           string    `json:"source" bson:"source"`
	DiscussionPoints string    `json:"discussionPoints" bson:"discussionPoints"`
	CreatedAt        time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt" bson:"updatedAt"`
	DateGroup        string    `json:"dateGroup" bson:"dateGroup"`
}

// DateLayout is the ISO calendar-date layout used for DateGroup and the
// PublishedDate fallback.
const DateLayout = "2006-01-02"

// DateOf returns the UTC calendar date of t.
func DateOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
