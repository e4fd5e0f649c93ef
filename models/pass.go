package models

import (
	"database/sql"
	"time"
)

// Pass statuses. Submissions start as StatusNew; moderation moves them on.
// Only a StatusNew pass can be edited by its submitter.
const (
	StatusNew      = "new"
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// TimeLayout is the wire and storage format of add_time.
const TimeLayout = "2006-01-02 15:04:05"

// ─────────────────────────────────────────────────────────────────────────────
// Documents returned to callers
// ─────────────────────────────────────────────────────────────────────────────

// Coords is the location of a pass.
type Coords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Height    int64   `json:"height"`
}

// Level holds the difficulty category per season; an empty string means
// the pass was not rated for that season.
type Level struct {
	Winter string `json:"winter"`
	Summer string `json:"summer"`
	Autumn string `json:"autumn"`
	Spring string `json:"spring"`
}

// Image is an attached photo. Data is an opaque encoded payload.
type Image struct {
	Data  string `json:"data"`
	Title string `json:"title"`
}

// PassDocument is a pass reassembled from its normalized rows. It has the
// same shape as a submission plus the system-assigned id and status.
type PassDocument struct {
	ID          int64   `json:"id"`
	BeautyTitle string  `json:"beauty_title"`
	Title       string  `json:"title"`
	OtherTitles string  `json:"other_titles"`
	Connect     string  `json:"connect"`
	AddTime     string  `json:"add_time"`
	Status      string  `json:"status"`
	AreaID      *int64  `json:"area_id"`
	User        User    `json:"user"`
	Coords      Coords  `json:"coords"`
	Level       Level   `json:"level"`
	Images      []Image `json:"images"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Submission input
// ─────────────────────────────────────────────────────────────────────────────

// PassInput is the body of a submission or an edit. Every field is a pointer
// (or a nil-able slice) so a missing key can be told apart from an empty one.
type PassInput struct {
	BeautyTitle *string      `json:"beauty_title"`
	Title       *string      `json:"title"`
	OtherTitles *string      `json:"other_titles"`
	Connect     *string      `json:"connect"`
	AddTime     *string      `json:"add_time"`
	AreaID      *int64       `json:"area_id"`
	User        *UserInput   `json:"user"`
	Coords      *CoordsInput `json:"coords"`
	Level       *LevelInput  `json:"level"`
	Images      []ImageInput `json:"images"`
}

// CoordsInput is the "coords" object of a submission.
type CoordsInput struct {
	Latitude  *Number `json:"latitude"`
	Longitude *Number `json:"longitude"`
	Height    *Number `json:"height"`
}

// LevelInput is the "level" object of a submission.
type LevelInput struct {
	Winter *string `json:"winter"`
	Summer *string `json:"summer"`
	Autumn *string `json:"autumn"`
	Spring *string `json:"spring"`
}

// ImageInput is one element of the "images" array of a submission.
type ImageInput struct {
	Data  *string `json:"data"`
	Title *string `json:"title"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Repository parameters and rows
// ─────────────────────────────────────────────────────────────────────────────

// CoordsParams holds converted coordinates. A nil field is written as NULL.
type CoordsParams struct {
	Latitude  *float64
	Longitude *float64
	Height    *int64
}

// CreatePassParams holds the scalar columns and foreign keys of a new pass.
type CreatePassParams struct {
	BeautyTitle string
	Title       string
	OtherTitles string
	Connect     string
	AddTime     time.Time
	UserID      int64
	CoordID     int64
	LevelID     int64
	AreaID      *int64
}

// UpdatePassParams holds everything an edit may change. The owning user is
// deliberately absent.
type UpdatePassParams struct {
	ID          int64
	BeautyTitle string
	Title       string
	OtherTitles string
	Connect     string
	AddTime     time.Time
	CoordID     int64
	LevelID     int64
	AreaID      *int64
}

// PassRow is one row of the passes table joined with its user, coords and
// level rows.
type PassRow struct {
	ID          int64
	BeautyTitle string
	Title       string
	OtherTitles string
	Connect     string
	AddTime     time.Time
	Status      string
	AreaID      sql.NullInt64
	UserID      int64
	User        User
	Coords      Coords
	Level       Level
}

// Document assembles the response document for the row and its images.
func (r *PassRow) Document(images []Image) PassDocument {
	doc := PassDocument{
		ID:          r.ID,
		BeautyTitle: r.BeautyTitle,
		Title:       r.Title,
		OtherTitles: r.OtherTitles,
		Connect:     r.Connect,
		AddTime:     r.AddTime.Format(TimeLayout),
		Status:      r.Status,
		User:        r.User,
		Coords:      r.Coords,
		Level:       r.Level,
		Images:      images,
	}
	if r.AreaID.Valid {
		id := r.AreaID.Int64
		doc.AreaID = &id
	}
	if doc.Images == nil {
		doc.Images = []Image{}
	}
	return doc
}
