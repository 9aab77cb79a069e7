// Package sites holds the list of tracked news sources.
package sites

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"newsdigest/internal/model"
)

// Site list validation errors.
var (
	ErrNoSites       = errors.New("at least one site is required")
	ErrMissingURL    = errors.New("site url is required")
	ErrMissingName   = errors.New("site name is required")
	ErrDuplicateName = errors.New("site names must be unique")
)

// Default is the built-in list of tracked sources.
var Default = []model.WebsiteConfig{
	{URL: "https://www.projectmanagement.com/", Name: "Project Management", BaseURL: "https://www.projectmanagement.com"},
	{URL: "https://www.enterpriseengagement.org/newswire/news/", Name: "Enterprise Engagement", BaseURL: "https://www.enterpriseengagement.org"},
	{URL: "https://www.thebrandingjournal.com/", Name: "Branding Journal", BaseURL: "https://www.thebrandingjournal.com"},
	{URL: "https://www.pmi.org/blog", Name: "PMI Blog", BaseURL: "https://www.pmi.org"},
	{URL: "https://hbr.org/", Name: "Harvard Business Review", BaseURL: "https://hbr.org"},
	{URL: "https://brandingstrategyinsider.com/", Name: "Branding Strategy Insider", BaseURL: "https://brandingstrategyinsider.com"},
	{URL: "https://seths.blog/", Name: "Seth's Blog", BaseURL: "https://seths.blog"},
	{URL: "https://www.brandingmag.com/", Name: "Branding Magazine", BaseURL: "https://www.brandingmag.com"},
}

type file struct {
	Sites []model.WebsiteConfig `yaml:"sites"`
}

// Load reads a YAML site file. An empty path returns a copy of Default.
//
//	sites:
//	  - url: https://hbr.org/
//	    name: Harvard Business Review
//	    base_url: https://hbr.org
func Load(path string) ([]model.WebsiteConfig, error) {
	if path == "" {
		out := make([]model.WebsiteConfig, len(Default))
		copy(out, Default)
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML site list.
func Parse(data []byte) ([]model.WebsiteConfig, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse site file: %w", err)
	}
	for i := range f.Sites {
		s := &f.Sites[i]
		s.URL = strings.TrimSpace(s.URL)
		s.Name = strings.TrimSpace(s.Name)
		s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	}
	if err := Validate(f.Sites); err != nil {
		return nil, err
	}
	return f.Sites, nil
}

// Validate checks that every site has a URL and a unique name.
func Validate(list []model.WebsiteConfig) error {
	if len(list) == 0 {
		return ErrNoSites
	}
	seen := make(map[string]struct{}, len(list))
	for i, s := range list {
		if s.URL == "" {
			return fmt.Errorf("site %d: %w", i, ErrMissingURL)
		}
		if s.Name == "" {
			return fmt.Errorf("site %d: %w", i, ErrMissingName)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("site %q: %w", s.Name, ErrDuplicateName)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
