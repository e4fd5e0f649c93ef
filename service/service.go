// Package service implements the pass record operations: submit, fetch by id,
// edit while the pass is still "new", and list by submitter e-mail.
//
// Every operation checks out its own connection from the pool, runs on it
// exclusively and releases it before returning. Writes run in a single
// transaction, so a failed call leaves the store as it was. All returned
// errors are *Error values classified against the sentinels in errors.go.
package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Skryldev/pereval/db"
	"github.com/Skryldev/pereval/models"
	"github.com/Skryldev/pereval/repo"
)

const (
	opSubmit      = "submit"
	opGetByID     = "get"
	opUpdate      = "update"
	opListByEmail = "list"
)

// Service is safe for concurrent use; it holds no per-call state.
type Service struct {
	db  *db.DB
	log zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for operation outcomes.
// Defaults to the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New returns a Service backed by database.
func New(database *db.DB, opts ...Option) *Service {
	s := &Service{db: database, log: log.Logger}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "service").Logger()
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Submit
// ─────────────────────────────────────────────────────────────────────────────

// Submit validates in and stores it as a new pass with status "new":
// upsert of the submitter by e-mail, fresh coords and level rows, the pass
// row, then one images row and join row per image in input order.
// It returns the id of the new pass.
func (s *Service) Submit(ctx context.Context, in *models.PassInput) (int64, error) {
	if err := requireFields(in, submitFields); err != nil {
		return 0, classify(opSubmit, err)
	}
	addTime, err := parseAddTime(*in.AddTime)
	if err != nil {
		return 0, classify(opSubmit, err)
	}
	coords, err := coordsParams(in.Coords)
	if err != nil {
		return 0, classify(opSubmit, err)
	}

	var passID int64
	err = s.db.WithConn(ctx, func(c *db.Conn) error {
		return c.ExecTx(ctx, func(tx *db.Tx) error {
			users := repo.NewUserRepo(tx)
			passes := repo.NewPassRepo(tx)

			userID, err := users.Upsert(ctx, in.User.Params())
			if err != nil {
				return err
			}
			coordID, err := passes.InsertCoords(ctx, coords)
			if err != nil {
				return err
			}
			levelID, err := passes.InsertLevel(ctx, *in.Level)
			if err != nil {
				return err
			}
			passID, err = passes.Insert(ctx, models.CreatePassParams{
				BeautyTitle: *in.BeautyTitle,
				Title:       *in.Title,
				OtherTitles: optional(in.OtherTitles),
				Connect:     optional(in.Connect),
				AddTime:     addTime,
				UserID:      userID,
				CoordID:     coordID,
				LevelID:     levelID,
				AreaID:      in.AreaID,
			})
			if err != nil {
				return err
			}
			return passes.AttachImages(ctx, passID, in.Images)
		})
	})
	if err != nil {
		err = classify(opSubmit, err)
		s.log.Warn().Err(err).Msg("submit failed")
		return 0, err
	}

	s.log.Info().Int64("pass_id", passID).Int("images", len(in.Images)).Msg("pass submitted")
	return passID, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns the pass with its submitter, coordinates, level and images.
func (s *Service) GetByID(ctx context.Context, id int64) (*models.PassDocument, error) {
	var doc models.PassDocument
	err := s.db.WithConn(ctx, func(c *db.Conn) error {
		passes := repo.NewPassRepo(c)

		row, err := passes.GetByID(ctx, id)
		if err != nil {
			return err
		}
		images, err := passes.Images(ctx, id)
		if err != nil {
			return err
		}
		doc = row.Document(images)
		return nil
	})
	if err != nil {
		return nil, classify(opGetByID, err)
	}
	return &doc, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Update
// ─────────────────────────────────────────────────────────────────────────────

// Update replaces the content of a pass whose status is still "new". The
// submitter is never changed; any "user" object in the input is ignored.
// Coordinates and level are written as fresh rows and the image set is
// replaced wholesale. Earlier coords, levels and images rows are kept.
func (s *Service) Update(ctx context.Context, id int64, in *models.PassInput) error {
	err := s.db.WithConn(ctx, func(c *db.Conn) error {
		return c.ExecTx(ctx, func(tx *db.Tx) error {
			passes := repo.NewPassRepo(tx)

			status, err := passes.Status(ctx, id)
			if err != nil {
				return err
			}
			if status != models.StatusNew {
				return &Error{Kind: ErrInvalidState, Cause: fmt.Errorf("status %q", status)}
			}

			if err := requireFields(in, updateFields); err != nil {
				return err
			}
			addTime, err := parseAddTime(*in.AddTime)
			if err != nil {
				return err
			}
			coords, err := coordsParams(in.Coords)
			if err != nil {
				return err
			}

			coordID, err := passes.InsertCoords(ctx, coords)
			if err != nil {
				return err
			}
			levelID, err := passes.InsertLevel(ctx, *in.Level)
			if err != nil {
				return err
			}
			err = passes.Update(ctx, models.UpdatePassParams{
				ID:          id,
				BeautyTitle: *in.BeautyTitle,
				Title:       *in.Title,
				OtherTitles: optional(in.OtherTitles),
				Connect:     optional(in.Connect),
				AddTime:     addTime,
				CoordID:     coordID,
				LevelID:     levelID,
				AreaID:      in.AreaID,
			})
			if err != nil {
				return err
			}
			if err := passes.DetachImages(ctx, id); err != nil {
				return err
			}
			return passes.AttachImages(ctx, id, in.Images)
		})
	})
	if err != nil {
		err = classify(opUpdate, err)
		s.log.Warn().Err(err).Int64("pass_id", id).Msg("update failed")
		return err
	}

	s.log.Info().Int64("pass_id", id).Msg("pass updated")
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ListByEmail
// ─────────────────────────────────────────────────────────────────────────────

// ListByEmail returns every pass submitted from email, ordered by id. An
// unknown e-mail and a known one without passes are both ErrNotFound.
// Images are fetched with one query per pass.
func (s *Service) ListByEmail(ctx context.Context, email string) ([]models.PassDocument, error) {
	var docs []models.PassDocument
	err := s.db.WithConn(ctx, func(c *db.Conn) error {
		users := repo.NewUserRepo(c)
		passes := repo.NewPassRepo(c)

		userID, err := users.IDByEmail(ctx, email)
		if err != nil {
			return err
		}
		rows, err := passes.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &Error{Kind: ErrNotFound, Cause: fmt.Errorf("no passes for %q", email)}
		}

		docs = make([]models.PassDocument, 0, len(rows))
		for _, row := range rows {
			images, err := passes.Images(ctx, row.ID)
			if err != nil {
				return err
			}
			docs = append(docs, row.Document(images))
		}
		return nil
	})
	if err != nil {
		return nil, classify(opListByEmail, err)
	}
	return docs, nil
}
