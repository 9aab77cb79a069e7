// Package ingest turns raw per-site extraction results into candidate
// articles and drives a full ingestion run.
package ingest

import (
	"strings"

	"newsdigest/internal/model"
)

// DefaultAuthor replaces a missing author.
const DefaultAuthor = "Unknown"

// NormalizeDiscussionPoints collapses the discussion-points field into one
// newline-delimited string. Unrecognized or absent shapes yield "".
func NormalizeDiscussionPoints(raw model.RawExtraction) string {
	v := raw.Get(model.FieldDiscussionPoints)
	switch v.Kind {
	case model.RawStructured:
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = item.StringValue
		}
		return strings.Join(parts, "\n")
	case model.RawList:
		return strings.Join(v.List, "\n")
	case model.RawText:
		return v.Text
	case model.RawAbsent, model.RawOther:
		return ""
	}
	return ""
}

// ResolveLink returns link unchanged when it already carries a scheme and
// prefixes baseURL otherwise. An empty link resolves to baseURL.
func ResolveLink(link, baseURL string) string {
	if strings.HasPrefix(link, "http") {
		return link
	}
	return baseURL + link
}

// Assemble maps a raw extraction onto a Candidate for site. It never fails;
// incomplete candidates are filtered by the store.
func Assemble(raw model.RawExtraction, site model.WebsiteConfig) model.Candidate {
	author := raw.Text(model.FieldAuthor)
	if author == "" {
		author = DefaultAuthor
	}
	return model.Candidate{
		Title:            raw.Text(model.FieldTitle),
		Link:             ResolveLink(raw.Text(model.FieldLink), site.BaseURL),
		PublishedDate:    raw.Text(model.FieldDate),
		Author:           author,
		Summary:          raw.Text(model.FieldSummary),
		Source:           site.Name,
		DiscussionPoints: NormalizeDiscussionPoints(raw),
	}
}
