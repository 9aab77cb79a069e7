package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdigest/internal/model"
)

func TestRawExtraction_UnmarshalShapes(t *testing.T) {
	body := `{
		"latest_title": "Hello",
		"latest_link": null,
		"latest_discussion_points": {"values": [{"string_value": "a"}, {"string_value": "b"}]},
		"list_field": ["x", "y", 3],
		"number_field": 42,
		"object_field": {"foo": "bar"}
	}`

	var raw model.RawExtraction
	require.NoError(t, json.Unmarshal([]byte(body), &raw))

	assert.Equal(t, model.RawText, raw.Get(model.FieldTitle).Kind)
	assert.Equal(t, "Hello", raw.Text(model.FieldTitle))

	assert.Equal(t, model.RawAbsent, raw.Get(model.FieldLink).Kind)
	assert.Equal(t, model.RawAbsent, raw.Get(model.FieldAuthor).Kind, "missing key reads as absent")

	dp := raw.Get(model.FieldDiscussionPoints)
	require.Equal(t, model.RawStructured, dp.Kind)
	assert.Equal(t, []model.ValueItem{{StringValue: "a"}, {StringValue: "b"}}, dp.Items)

	list := raw.Get("list_field")
	require.Equal(t, model.RawList, list.Kind)
	assert.Equal(t, []string{"x", "y", "3"}, list.List)

	assert.Equal(t, model.RawOther, raw.Get("number_field").Kind)
	assert.Equal(t, model.RawOther, raw.Get("object_field").Kind)
}

func TestRawExtraction_NilIsAbsent(t *testing.T) {
	var raw model.RawExtraction
	assert.False(t, raw.Get(model.FieldTitle).Present())
	assert.Equal(t, "", raw.Text(model.FieldTitle))
}

func TestDateOf_UsesUTC(t *testing.T) {
	ts := mustParse(t, "2024-03-01T23:30:00-05:00")
	assert.Equal(t, "2024-03-02", model.DateOf(ts))
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}
