package model

import (
	"bytes"
	"encoding/json"
)

// RawKind tags the shape of a field returned by the extraction API.
type RawKind int

const (
	RawAbsent RawKind = iota
	RawText
	RawList
	RawStructured
	RawOther
)

func (k RawKind) String() string {
	switch k {
	case RawAbsent:
		return "absent"
	case RawText:
		return "text"
	case RawList:
		return "list"
	case RawStructured:
		return "structured"
	default:
		return "other"
	}
}

// ValueItem is one entry of a structured value list: {"string_value": "..."}.
type ValueItem struct {
	StringValue string `json:"string_value"`
}

// RawValue is a decoded extraction field. Exactly one of Text, List or Items
// is meaningful, selected by Kind.
type RawValue struct {
	Kind  RawKind
	Text  string
	List  []string
	Items []ValueItem
}

// Text builds a plain string value.
func Text(s string) RawValue { return RawValue{Kind: RawText, Text: s} }

// List builds a list value.
func List(items ...string) RawValue { return RawValue{Kind: RawList, List: items} }

// Structured builds a nested value-list.
func Structured(items ...ValueItem) RawValue {
	return RawValue{Kind: RawStructured, Items: items}
}

// Present reports whether the field carried any value at all.
func (v RawValue) Present() bool { return v.Kind != RawAbsent }

// String returns the text of a Text value and "" for every other shape.
func (v RawValue) String() string {
	if v.Kind == RawText {
		return v.Text
	}
	return ""
}

// UnmarshalJSON classifies a JSON value into the RawValue variants.
//
//	null                         -> RawAbsent
//	"text"                       -> RawText
//	["a", "b"]                   -> RawList (non-string entries are re-encoded)
//	{"values": [{"string_value"}]} -> RawStructured
//	anything else                -> RawOther
func (v *RawValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*v = RawValue{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(data, &entries); err != nil {
			return err
		}
		list := make([]string, 0, len(entries))
		for _, e := range entries {
			var s string
			if err := json.Unmarshal(e, &s); err == nil {
				list = append(list, s)
				continue
			}
			list = append(list, string(bytes.TrimSpace(e)))
		}
		*v = RawValue{Kind: RawList, List: list}
	case '{':
		var obj struct {
			Values []ValueItem `json:"values"`
		}
		if err := json.Unmarshal(data, &obj); err != nil || obj.Values == nil {
			v.Kind = RawOther
			return nil
		}
		*v = RawValue{Kind: RawStructured, Items: obj.Values}
	default:
		v.Kind = RawOther
	}
	return nil
}

// Extraction field names requested from the remote API.
const (
	FieldTitle            = "latest_title"
	FieldLink             = "latest_link"
	FieldDate             = "latest_date"
	FieldAuthor           = "latest_author"
	FieldSummary          = "latest_summary"
	FieldDiscussionPoints = "latest_discussion_points"
)

// RawExtraction maps field name to value for one site. Missing keys read as
// RawAbsent.
type RawExtraction map[string]RawValue

// Get returns the value for field, RawAbsent when missing.
func (r RawExtraction) Get(field string) RawValue {
	if r == nil {
		return RawValue{}
	}
	return r[field]
}

// Text returns the string value of field, "" for absent or non-text values.
func (r RawExtraction) Text(field string) string {
	return r.Get(field).String()
}
