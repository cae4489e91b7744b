// Package reports provides the Report model and its spreadsheet-backed
// record store.
package reports

import (
	"strconv"
	"strings"
	"time"
)

// DefaultIcon is the glyph used when a report has none.
const DefaultIcon = "📄"

// Report is the persisted unit of curation.
//
// Exactly one of URL and PDFPath may be nil, but not both, once a
// report is submitted; drafts produced by metadata extraction may have
// neither until the caller fills one in.
type Report struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	Source   string   `json:"source"`
	Summary  string   `json:"summary"`
	Date     string   `json:"date"` // YYYY-MM-DD
	Tags     []string `json:"tags"`
	URL      *string  `json:"url"`
	PDFPath  *string  `json:"pdfPath"`
	Icon     string   `json:"icon"`
	Notes    string   `json:"notes"`
	Verified bool     `json:"verified"`
	AddedBy  string   `json:"addedBy"`
}

// DocumentURL returns the report's canonical document identifier:
// the source URL when present, otherwise the hosted PDF location.
func (r Report) DocumentURL() string {
	if r.URL != nil && *r.URL != "" {
		return *r.URL
	}
	if r.PDFPath != nil && *r.PDFPath != "" {
		return *r.PDFPath
	}
	return ""
}

// normalizeRow builds a Report from a header-keyed spreadsheet row.
// Missing fields get the read-side defaults the dashboard expects.
func normalizeRow(row map[string]string, fallbackID int) (Report, bool) {
	title := row["title"]
	if title == "" {
		return Report{}, false
	}

	id := fallbackID
	if raw := row["id"]; raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			id = parsed
		}
	}

	summary := row["summary"]
	if summary == "" {
		summary = row["notes"]
	}

	source := row["source"]
	if source == "" {
		source = "Unknown"
	}

	date := row["date"]
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	tags := splitTags(row["tags"])
	if len(tags) == 0 {
		tags = []string{"Research"}
	}

	icon := row["icon"]
	if icon == "" {
		icon = DefaultIcon
	}

	pdfPath := row["pdfpath"]
	if pdfPath == "" {
		pdfPath = row["pdf_path"]
	}

	addedBy := row["added_by"]
	if addedBy == "" {
		addedBy = row["addedby"]
	}

	return Report{
		ID:       id,
		Title:    title,
		Source:   source,
		Summary:  summary,
		Date:     date,
		Tags:     tags,
		URL:      optional(row["url"]),
		PDFPath:  optional(pdfPath),
		Icon:     icon,
		Notes:    row["notes"],
		Verified: parseBool(row["verified"]),
		AddedBy:  addedBy,
	}, true
}

// splitTags parses a comma-separated tag cell, preserving order.
func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
