package repo

import (
	"context"
	"fmt"

	"github.com/Skryldev/pereval/db"
	"github.com/Skryldev/pereval/models"
)

// PassRepository defines persistence of passes and the rows they own
// (coords, levels, images and pass_images links).
type PassRepository interface {
	InsertCoords(ctx context.Context, params models.CoordsParams) (int64, error)
	InsertLevel(ctx context.Context, level models.LevelInput) (int64, error)
	Insert(ctx context.Context, params models.CreatePassParams) (int64, error)
	Update(ctx context.Context, params models.UpdatePassParams) error
	Status(ctx context.Context, id int64) (string, error)
	GetByID(ctx context.Context, id int64) (*models.PassRow, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.PassRow, error)
	AttachImages(ctx context.Context, passID int64, images []models.ImageInput) error
	DetachImages(ctx context.Context, passID int64) error
	Images(ctx context.Context, passID int64) ([]models.Image, error)
}

type passRepo struct {
	q db.Querier
}

// NewPassRepo returns a PassRepository backed by q.
func NewPassRepo(q db.Querier) PassRepository {
	return &passRepo{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	sqlInsertCoords = `
		INSERT INTO coords (latitude, longitude, height)
		VALUES ($1, $2, $3)
		RETURNING id`

	sqlInsertLevel = `
		INSERT INTO levels (winter, summer, autumn, spring)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	sqlInsertPass = `
		INSERT INTO passes (beauty_title, title, other_titles, connect, add_time,
		                    user_id, coord_id, level_id, status, area_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'new', $9)
		RETURNING id`

	// user_id is never part of an edit.
	sqlUpdatePass = `
		UPDATE passes
		SET    beauty_title = $1,
		       title        = $2,
		       other_titles = $3,
		       connect      = $4,
		       add_time     = $5,
		       coord_id     = $6,
		       level_id     = $7,
		       area_id      = $8
		WHERE  id = $9`

	sqlPassStatus = `
		SELECT status FROM passes WHERE id = $1`

	// passColumns must stay in the order scanPass reads them.
	passColumns = `
		p.id, p.beauty_title, p.title, p.other_titles, p.connect, p.add_time,
		p.status, p.area_id,
		u.id, u.email, u.fam, u.name, u.otc, u.phone,
		c.latitude, c.longitude, c.height,
		l.winter, l.summer, l.autumn, l.spring`

	passJoins = `
		FROM   passes p
		JOIN   users  u ON u.id = p.user_id
		JOIN   coords c ON c.id = p.coord_id
		JOIN   levels l ON l.id = p.level_id`

	sqlGetPass = `
		SELECT ` + passColumns + passJoins + `
		WHERE  p.id = $1`

	sqlListPassesByUser = `
		SELECT ` + passColumns + passJoins + `
		WHERE  p.user_id = $1
		ORDER  BY p.id`

	sqlInsertImage = `
		INSERT INTO images (data, title)
		VALUES ($1, $2)
		RETURNING id`

	sqlLinkImage = `
		INSERT INTO pass_images (pass_id, image_id)
		VALUES ($1, $2)`

	sqlUnlinkImages = `
		DELETE FROM pass_images WHERE pass_id = $1`

	// No sequence column exists; image id order is insertion order.
	sqlPassImages = `
		SELECT i.data, i.title
		FROM   images i
		JOIN   pass_images pi ON pi.image_id = i.id
		WHERE  pi.pass_id = $1
		ORDER  BY i.id`
)

// ─────────────────────────────────────────────────────────────────────────────
// Owned rows
// ─────────────────────────────────────────────────────────────────────────────

// InsertCoords writes a fresh coords row. Rows are never shared or updated
// in place; an edit inserts a new one.
func (r *passRepo) InsertCoords(ctx context.Context, p models.CoordsParams) (int64, error) {
	var id int64
	if err := r.q.QueryRow(ctx, sqlInsertCoords, p.Latitude, p.Longitude, p.Height).Scan(&id); err != nil {
		return 0, fmt.Errorf("repo/pass: insert coords: %w", err)
	}
	return id, nil
}

// InsertLevel writes a fresh levels row.
func (r *passRepo) InsertLevel(ctx context.Context, l models.LevelInput) (int64, error) {
	var id int64
	if err := r.q.QueryRow(ctx, sqlInsertLevel, l.Winter, l.Summer, l.Autumn, l.Spring).Scan(&id); err != nil {
		return 0, fmt.Errorf("repo/pass: insert level: %w", err)
	}
	return id, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Passes
// ─────────────────────────────────────────────────────────────────────────────

// Insert creates a pass with status "new" and returns its id.
func (r *passRepo) Insert(ctx context.Context, p models.CreatePassParams) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, sqlInsertPass,
		p.BeautyTitle, p.Title, p.OtherTitles, p.Connect, p.AddTime.UTC(),
		p.UserID, p.CoordID, p.LevelID, p.AreaID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("repo/pass: insert: %w", err)
	}
	return id, nil
}

// Update rewrites the scalar columns and the coords/level references of a
// pass. Returns db.ErrNotFound if no row was updated.
func (r *passRepo) Update(ctx context.Context, p models.UpdatePassParams) error {
	res, err := r.q.Exec(ctx, sqlUpdatePass,
		p.BeautyTitle, p.Title, p.OtherTitles, p.Connect, p.AddTime.UTC(),
		p.CoordID, p.LevelID, p.AreaID, p.ID,
	)
	if err != nil {
		return fmt.Errorf("repo/pass: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// Status returns the moderation status of a pass.
// Returns db.ErrNotFound when the pass does not exist.
func (r *passRepo) Status(ctx context.Context, id int64) (string, error) {
	var status string
	if err := r.q.QueryRow(ctx, sqlPassStatus, id).Scan(&status); err != nil {
		return "", fmt.Errorf("repo/pass: status: %w", err)
	}
	return status, nil
}

// GetByID returns the pass joined with its user, coords and level.
// Returns db.ErrNotFound when no record matches.
func (r *passRepo) GetByID(ctx context.Context, id int64) (*models.PassRow, error) {
	p, err := scanPass(r.q.QueryRow(ctx, sqlGetPass, id))
	if err != nil {
		return nil, fmt.Errorf("repo/pass: %w", err)
	}
	return p, nil
}

// ListByUser returns every pass owned by userID, ordered by id. The rows are
// fully read and closed before returning, so the caller may issue further
// statements on the same connection.
func (r *passRepo) ListByUser(ctx context.Context, userID int64) ([]*models.PassRow, error) {
	rows, err := r.q.Query(ctx, sqlListPassesByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("repo/pass: list: %w", err)
	}
	defer rows.Close()

	var passes []*models.PassRow
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, fmt.Errorf("repo/pass: scan: %w", err)
		}
		passes = append(passes, p)
	}
	return passes, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Images
// ─────────────────────────────────────────────────────────────────────────────

// AttachImages inserts one images row per input, in order, and links each
// to the pass. Both statements are prepared once for the whole batch.
func (r *passRepo) AttachImages(ctx context.Context, passID int64, images []models.ImageInput) error {
	if len(images) == 0 {
		return nil
	}

	insert, err := r.q.Prepare(ctx, sqlInsertImage)
	if err != nil {
		return fmt.Errorf("repo/pass: prepare image insert: %w", err)
	}
	defer insert.Close()

	link, err := r.q.Prepare(ctx, sqlLinkImage)
	if err != nil {
		return fmt.Errorf("repo/pass: prepare image link: %w", err)
	}
	defer link.Close()

	for i, img := range images {
		var imageID int64
		if err := insert.QueryRow(ctx, img.Data, img.Title).Scan(&imageID); err != nil {
			return fmt.Errorf("repo/pass: insert image %d: %w", i, err)
		}
		if _, err := link.Exec(ctx, passID, imageID); err != nil {
			return fmt.Errorf("repo/pass: link image %d: %w", i, err)
		}
	}
	return nil
}

// DetachImages deletes every pass_images link of the pass. The images rows
// themselves are kept.
func (r *passRepo) DetachImages(ctx context.Context, passID int64) error {
	if _, err := r.q.Exec(ctx, sqlUnlinkImages, passID); err != nil {
		return fmt.Errorf("repo/pass: unlink images: %w", err)
	}
	return nil
}

// Images returns the images linked to the pass in insertion order.
func (r *passRepo) Images(ctx context.Context, passID int64) ([]models.Image, error) {
	rows, err := r.q.Query(ctx, sqlPassImages, passID)
	if err != nil {
		return nil, fmt.Errorf("repo/pass: images: %w", err)
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.Data, &img.Title); err != nil {
			return nil, fmt.Errorf("repo/pass: scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// scanPass — centralised column mapping
// ─────────────────────────────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

// scanPass reads one row selected with passColumns into a PassRow, naming
// every destination field explicitly.
func scanPass(s scanner) (*models.PassRow, error) {
	p := &models.PassRow{}
	err := s.Scan(
		&p.ID, &p.BeautyTitle, &p.Title, &p.OtherTitles, &p.Connect, &p.AddTime,
		&p.Status, &p.AreaID,
		&p.UserID, &p.User.Email, &p.User.Fam, &p.User.Name, &p.User.Otc, &p.User.Phone,
		&p.Coords.Latitude, &p.Coords.Longitude, &p.Coords.Height,
		&p.Level.Winter, &p.Level.Summer, &p.Level.Autumn, &p.Level.Spring,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

var _ PassRepository = (*passRepo)(nil)
