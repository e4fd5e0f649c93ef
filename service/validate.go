package service

import (
	"errors"
	"math"
	"time"

	"github.com/Skryldev/pereval/models"
)

// Required top-level fields, in the order they are checked. An edit cannot
// change the submitter, so "user" is not required there.
var (
	submitFields = []string{"beauty_title", "title", "add_time", "user", "coords", "level", "images"}
	updateFields = []string{"beauty_title", "title", "add_time", "coords", "level", "images"}
)

// present reports whether the named top-level field was supplied. JSON null
// counts as absent; an empty images array counts as present.
func present(in *models.PassInput, field string) bool {
	switch field {
	case "beauty_title":
		return in.BeautyTitle != nil
	case "title":
		return in.Title != nil
	case "add_time":
		return in.AddTime != nil
	case "user":
		return in.User != nil
	case "coords":
		return in.Coords != nil
	case "level":
		return in.Level != nil
	case "images":
		return in.Images != nil
	}
	return false
}

// requireFields returns a validation error for the first missing field.
func requireFields(in *models.PassInput, fields []string) error {
	for _, f := range fields {
		if in == nil || !present(in, f) {
			return validationError(f)
		}
	}
	return nil
}

// parseAddTime parses add_time in the fixed "YYYY-MM-DD HH:MM:SS" layout.
func parseAddTime(s string) (time.Time, error) {
	t, err := time.Parse(models.TimeLayout, s)
	if err != nil {
		return time.Time{}, formatError("add_time", err)
	}
	return t, nil
}

var (
	errFractionalHeight = errors.New("height must be an integer")
	errHeightRange      = errors.New("height out of range")
)

// coordsParams converts the submitted coordinates. Absent values stay nil and
// are written as NULL, which the store rejects.
func coordsParams(c *models.CoordsInput) (models.CoordsParams, error) {
	var p models.CoordsParams
	if c.Latitude != nil {
		v, err := c.Latitude.Float64()
		if err != nil {
			return p, formatError("coords.latitude", err)
		}
		p.Latitude = &v
	}
	if c.Longitude != nil {
		v, err := c.Longitude.Float64()
		if err != nil {
			return p, formatError("coords.longitude", err)
		}
		p.Longitude = &v
	}
	if c.Height != nil {
		v, err := height(*c.Height)
		if err != nil {
			return p, formatError("coords.height", err)
		}
		p.Height = &v
	}
	return p, nil
}

// height accepts "1300", 1300 and 1300.0.
func height(n models.Number) (int64, error) {
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || f != math.Trunc(f) {
		return 0, errFractionalHeight
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, errHeightRange
	}
	return int64(f), nil
}

// optional dereferences s, defaulting to "".
func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
