package ingest_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdigest/internal/ingest"
	"newsdigest/internal/model"
)

// ── NormalizeDiscussionPoints ─────────────────────────────────────────────

func TestNormalizeDiscussionPoints(t *testing.T) {
	cases := []struct {
		name string
		in   model.RawValue
		want string
	}{
		{"structured", model.Structured(model.ValueItem{StringValue: "one"}, model.ValueItem{StringValue: "two"}), "one\ntwo"},
		{"list", model.List("a", "b", "c"), "a\nb\nc"},
		{"text", model.Text("already joined\nlines"), "already joined\nlines"},
		{"absent", model.RawValue{}, ""},
		{"other", model.RawValue{Kind: model.RawOther}, ""},
		{"empty list", model.List(), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := model.RawExtraction{model.FieldDiscussionPoints: tc.in}
			assert.Equal(t, tc.want, ingest.NormalizeDiscussionPoints(raw))
		})
	}
}

func TestNormalizeDiscussionPoints_FromJSON(t *testing.T) {
	cases := map[string]string{
		`{"latest_discussion_points": {"values": [{"string_value": "x"}, {"string_value": "y"}]}}`: "x\ny",
		`{"latest_discussion_points": ["x", "y"]}`:                                               "x\ny",
		`{"latest_discussion_points": "x"}`:                                                      "x",
		`{"latest_discussion_points": 12}`:                                                       "",
		`{}`:                                                                                     "",
	}
	for body, want := range cases {
		var raw model.RawExtraction
		require.NoError(t, json.Unmarshal([]byte(body), &raw))
		assert.Equal(t, want, ingest.NormalizeDiscussionPoints(raw), body)
	}
}

// ── ResolveLink ───────────────────────────────────────────────────────────

func TestResolveLink(t *testing.T) {
	assert.Equal(t, "https://example.com/blog/post-1", ingest.ResolveLink("/blog/post-1", "https://example.com"))
	assert.Equal(t, "https://other.com/x", ingest.ResolveLink("https://other.com/x", "https://example.com"))
	assert.Equal(t, "https://example.com", ingest.ResolveLink("", "https://example.com"))
}

// ── Assemble ──────────────────────────────────────────────────────────────

func TestAssemble(t *testing.T) {
	site := model.WebsiteConfig{URL: "https://example.com/", Name: "Example", BaseURL: "https://example.com"}
	raw := model.RawExtraction{
		model.FieldTitle:            model.Text("Title"),
		model.FieldLink:             model.Text("/post"),
		model.FieldDate:             model.Text("2024-05-01"),
		model.FieldSummary:          model.Text("Summary"),
		model.FieldDiscussionPoints: model.List("p1", "p2"),
		"source":                    model.Text("Somebody Else"),
	}

	got := ingest.Assemble(raw, site)
	assert.Equal(t, model.Candidate{
		Title:            "Title",
		Link:             "https://example.com/post",
		PublishedDate:    "2024-05-01",
		Author:           "Unknown",
		Summary:          "Summary",
		Source:           "Example",
		DiscussionPoints: "p1\np2",
	}, got)
}

func TestAssemble_Garbage(t *testing.T) {
	site := model.WebsiteConfig{Name: "Example", BaseURL: "https://example.com"}
	raw := model.RawExtraction{model.FieldTitle: {Kind: model.RawOther}}

	got := ingest.Assemble(raw, site)
	assert.Empty(t, got.Title)
	assert.Equal(t, "https://example.com", got.Link)
	assert.Equal(t, "Unknown", got.Author)
	assert.Equal(t, "Example", got.Source)
}
