package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// DefaultLocation is used when a company has no location.
const DefaultLocation = "Unknown"

// fileCompany is one value of the companies_file map.
type fileCompany struct {
	URL      string        `json:"url"`
	Keywords []string      `json:"keywords"`
	Location locationField `json:"location"`
}

// locationField accepts either a string or a list of strings.
type locationField string

func (l *locationField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	if data[0] == '[' {
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("decode location list: %w", err)
		}
		kept := parts[:0]
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				kept = append(kept, part)
			}
		}
		*l = locationField(strings.Join(kept, ", "))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode location: %w", err)
	}
	*l = locationField(s)
	return nil
}

// Targets merges the inline companies with companies_file. Inline entries
// come first in configuration order, file entries follow in file order, and
// a name present in both keeps the inline entry.
func (c Config) Targets() ([]crawler.CompanyTarget, error) {
	targets := make([]crawler.CompanyTarget, 0, len(c.Companies))
	seen := make(map[string]struct{}, len(c.Companies))
	for _, company := range c.Companies {
		target := newTarget(company.Name, company.URL, company.Keywords, company.Location)
		if _, dup := seen[target.Name]; dup {
			return nil, fmt.Errorf("companies: duplicate name %q", target.Name)
		}
		seen[target.Name] = struct{}{}
		targets = append(targets, target)
	}
	if c.CompaniesFile == "" {
		return targets, nil
	}
	fromFile, err := LoadCompaniesFile(c.CompaniesFile)
	if err != nil {
		return nil, err
	}
	for _, target := range fromFile {
		if _, dup := seen[target.Name]; dup {
			continue
		}
		targets = append(targets, target)
	}
	return targets, nil
}

// LoadCompaniesFile reads a JSON object keyed by company name, e.g.
// {"acme": {"url": "...", "keywords": ["intern"], "location": "Remote"}}.
// Targets keep the order the keys appear in the file.
func LoadCompaniesFile(path string) ([]crawler.CompanyTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read companies file: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, errors.New("decode companies file: expected a JSON object")
	}

	var targets []crawler.CompanyTarget
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode companies file: %w", err)
		}
		name, _ := tok.(string)
		var entry fileCompany
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("decode companies file: %q: %w", name, err)
		}
		if strings.TrimSpace(name) == "" || strings.TrimSpace(entry.URL) == "" {
			return nil, fmt.Errorf("companies file: %q needs a name and url", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("companies file: duplicate name %q", name)
		}
		seen[name] = struct{}{}
		targets = append(targets, newTarget(name, entry.URL, entry.Keywords, string(entry.Location)))
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode companies file: %w", err)
	}
	return targets, nil
}

func newTarget(name, url string, keywords []string, location string) crawler.CompanyTarget {
	location = strings.TrimSpace(location)
	if location == "" {
		location = DefaultLocation
	}
	return crawler.CompanyTarget{
		Name:     strings.TrimSpace(name),
		URL:      strings.TrimSpace(url),
		Keywords: crawler.NormalizeKeywords(keywords),
		Location: location,
	}
}
