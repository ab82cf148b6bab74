package storage

import (
	"encoding/json"
	"time"
)

// Location is where a college is situated.
type Location struct {
	City     string `json:"city"`
	District string `json:"district"`
	State    string `json:"state"`
}

// Branch is one program offered by a college.
// BranchName is stored as published, not normalized.
type Branch struct {
	BranchName string `json:"branchName"`
	// Cutoffs maps a category code to its raw stored value, which may be absent,
	// null, a number, a numeric string or a tagged numeric wrapper.
	Cutoffs map[string]json.RawMessage `json:"cutoffs"`
}

// College is a catalog record keyed by its human-readable code.
type College struct {
	Code           string   `json:"code"`
	Name           string   `json:"name"`
	Location       Location `json:"location"`
	Type           string   `json:"type"`
	AutonomyStatus string   `json:"autonomyStatus"`
	Branches       []Branch `json:"branches"`
}

// CollegeSummary is the identifying subset of a College shown alongside shortlist entries.
type CollegeSummary struct {
	Code     string   `json:"code"`
	Name     string   `json:"name,omitempty"`
	Location Location `json:"location"`
	Type     string   `json:"type,omitempty"`
}

// Summary returns the identifying subset of c.
func (c *College) Summary() CollegeSummary {
	return CollegeSummary{
		Code:     c.Code,
		Name:     c.Name,
		Location: c.Location,
		Type:     c.Type,
	}
}

// CollegeFilter narrows a bulk catalog read. Empty fields do not filter.
type CollegeFilter struct {
	City string // case-insensitive substring of Location.City
	Type string // exact match on Type
}

// ShortlistEntry is one ranked (college, branch) choice in a user's shortlist.
type ShortlistEntry struct {
	CollegeCode      string    `json:"collegeCode"`
	Branch           string    `json:"branch"`
	Rank             int       `json:"rank"`
	CutoffPercentile *float64  `json:"cutoffPercentile"`
	Category         *string   `json:"category"`
	AddedAt          time.Time `json:"addedAt"`
}
