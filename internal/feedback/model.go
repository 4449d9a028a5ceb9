package feedback

import (
	"errors"
	"time"
)

const (
	MinRating      = 1
	MaxRating      = 5
	MinTextLength  = 10
	NearbyLimit    = 50
	lowestMandals  = 2
	criticalBelow  = 2.5
	attentionBelow = 3.5
)

// ErrNoDistrict is returned when an official without a district asks for district views.
var ErrNoDistrict = errors.New("official has no district assigned")

// Feedback is one citizen submission. Location fields are a snapshot of the
// citizen's profile at submission time.
type Feedback struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	ServiceType     string    `json:"service_type"`
	Rating          int       `json:"rating"`
	Text            string    `json:"feedback_text"`
	Title           string    `json:"title,omitempty"`
	Location        string    `json:"location,omitempty"`
	LocationDetails string    `json:"location_details,omitempty"`
	District        string    `json:"district"`
	Mandal          string    `json:"mandal"`
	Village         string    `json:"village"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SubmitInput is what a citizen provides.
type SubmitInput struct {
	ServiceType     string `json:"service_type"`
	Rating          int    `json:"rating"`
	Text            string `json:"feedback_text"`
	Title           string `json:"title"`
	Location        string `json:"location"`
	LocationDetails string `json:"location_details"`
}

// RatingBand groups ratings for filtering.
type RatingBand string

const (
	BandAny    RatingBand = ""
	BandLow    RatingBand = "low"
	BandMedium RatingBand = "medium"
	BandHigh   RatingBand = "high"
)

// Bounds returns the inclusive rating range of the band.
func (b RatingBand) Bounds() (min, max int, ok bool) {
	switch b {
	case BandAny:
		return MinRating, MaxRating, true
	case BandLow:
		return MinRating, 2, true
	case BandMedium:
		return 3, 3, true
	case BandHigh:
		return 4, MaxRating, true
	}
	return 0, 0, false
}

// Filter narrows the official district view.
type Filter struct {
	Mandal      string
	Village     string
	ServiceType string
	Band        RatingBand
	Search      string
}

// Query is the repository-level selection. Zero fields are ignored.
type Query struct {
	UserID      string
	District    string
	Mandal      string
	Village     string
	ServiceType string
	MinRating   int
	MaxRating   int
	Search      string
	Limit       int
}

// Stat aggregates ratings for a group.
type Stat struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// Status labels a district by its average rating.
type Status string

const (
	StatusNoData         Status = "no_data"
	StatusCritical       Status = "critical"
	StatusNeedsAttention Status = "needs_attention"
	StatusGood           Status = "good"
)

// StatusFor maps an average rating to its label.
func StatusFor(total int, avg float64) Status {
	switch {
	case total == 0:
		return StatusNoData
	case avg < criticalBelow:
		return StatusCritical
	case avg < attentionBelow:
		return StatusNeedsAttention
	default:
		return StatusGood
	}
}

// Summary is the district dashboard aggregate.
type Summary struct {
	District      string  `json:"district"`
	Total         int     `json:"total"`
	Average       float64 `json:"average"`
	Status        Status  `json:"status"`
	Services      []Stat  `json:"services"`
	LowestMandals []Stat  `json:"lowest_mandals"`
}
