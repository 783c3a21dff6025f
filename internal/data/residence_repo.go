package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagyekum/residency/internal/data/pgxutil"
	"github.com/gagyekum/residency/internal/domain/model"
	"github.com/jackc/pgx/v5"
)

// ErrResidenceNotFound is returned when a residence is not found.
var ErrResidenceNotFound = errors.New("residence not found")

const residenceColumns = `
  id,
  house_number,
  name,
  created_at,
  updated_at
`

// pgxQuerier abstracts *pgx.Conn and pgx.Tx so contact loading works inside
// and outside transactions.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ResidenceRepo provides database operations for the residence directory.
type ResidenceRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewResidenceRepo creates a ResidenceRepo on the system clock.
func NewResidenceRepo(db *sql.DB) *ResidenceRepo {
	return &ResidenceRepo{DB: db, clock: systemClock{}}
}

// NewResidenceRepoWithClock creates a ResidenceRepo that reads time from clock.
func NewResidenceRepoWithClock(db *sql.DB, clock Clock) *ResidenceRepo {
	return &ResidenceRepo{DB: db, clock: clock}
}

// Create inserts a residence with its phone and email rows in one transaction.
func (r *ResidenceRepo) Create(
	ctx context.Context,
	req *model.CreateResidenceRequest,
) (*model.Residence, error) {
	if req == nil {
		return nil, errors.New("create residence request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.clock.Now().UTC()
	var out model.Residence
	if err := pgxutil.WithNativeTx(ctx, r.DB,
		&sql.TxOptions{Isolation: sql.LevelReadCommitted},
		func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, `
				INSERT INTO residences (house_number, name, created_at, updated_at)
				VALUES ($1, $2, $3, $3)
				RETURNING `+residenceColumns,
				strings.TrimSpace(req.HouseNumber),
				strings.TrimSpace(req.Name),
				now,
			)
			if err != nil {
				return fmt.Errorf("insert residence: %w", err)
			}
			out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Residence])
			if err != nil {
				return fmt.Errorf("collect residence: %w", err)
			}

			out.PhoneNumbers, err = insertPhoneNumbers(ctx, tx, out.ID, req.PhoneNumbers)
			if err != nil {
				return err
			}
			out.EmailAddresses, err = insertEmailAddresses(ctx, tx, out.ID, req.EmailAddresses)
			return err
		},
	); err != nil {
		return nil, fmt.Errorf("create residence: %w", err)
	}
	return &out, nil
}

// GetByID retrieves a residence with its contact rows.
func (r *ResidenceRepo) GetByID(ctx context.Context, id int64) (*model.Residence, error) {
	var out model.Residence
	err := pgxutil.WithNativeConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+residenceColumns+`
			FROM residences
			WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Residence])
		if err != nil {
			return err
		}
		return loadResidenceContacts(ctx, conn, []*model.Residence{&out})
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResidenceNotFound
		}
		return nil, fmt.Errorf("failed to get residence by ID: %w", err)
	}
	return &out, nil
}

// List retrieves residences ordered by house number together with the total
// count. When a search term is set it matches house number, name, and any
// phone number.
func (r *ResidenceRepo) List(
	ctx context.Context,
	opts model.ResidencesListOptions,
) ([]*model.Residence, int, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50 // Default limit
	}
	if limit > 1000 {
		limit = 1000 // Max limit
	}
	offset := max(opts.Offset, 0)

	where := ""
	args := []any{}
	if opts.Q != nil && strings.TrimSpace(*opts.Q) != "" {
		where = `
			WHERE house_number ILIKE $1
			   OR name ILIKE $1
			   OR EXISTS (
			     SELECT 1 FROM residence_phone_numbers p
			     WHERE p.residence_id = residences.id AND p.number ILIKE $1
			   )`
		args = append(args, "%"+strings.TrimSpace(*opts.Q)+"%")
	}

	var (
		res   []*model.Residence
		total int
	)
	if err := pgxutil.WithNativeConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if err := conn.QueryRow(ctx,
			`SELECT count(*) FROM residences`+where, args...).Scan(&total); err != nil {
			return err
		}

		pageArgs := append(args, limit, offset)
		rows, err := conn.Query(ctx, `
			SELECT `+residenceColumns+`
			FROM residences`+where+`
			ORDER BY house_number, id
			LIMIT $`+strconv.Itoa(len(args)+1)+` OFFSET $`+strconv.Itoa(len(args)+2),
			pageArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Residence])
		if err != nil {
			return err
		}

		res = make([]*model.Residence, len(rowsOut))
		for i := range rowsOut {
			res[i] = &rowsOut[i]
		}
		return loadResidenceContacts(ctx, conn, res)
	}); err != nil {
		return nil, 0, fmt.Errorf("failed to list residences: %w", err)
	}
	return res, total, nil
}

// Update applies a partial update. A non-nil contact list replaces the
// existing rows wholesale inside the same transaction, the way the directory
// has always behaved.
func (r *ResidenceRepo) Update(
	ctx context.Context,
	id int64,
	req model.UpdateResidenceRequest,
) (*model.Residence, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.clock.Now().UTC()
	var out model.Residence
	err := pgxutil.WithNativeTx(ctx, r.DB,
		&sql.TxOptions{Isolation: sql.LevelReadCommitted},
		func(tx pgx.Tx) error {
			setClause, args := buildResidenceUpdateClause(req, now)
			args = append(args, id)
			rows, err := tx.Query(ctx,
				"UPDATE residences SET "+setClause+
					" WHERE id = $"+strconv.Itoa(len(args))+
					" RETURNING "+residenceColumns,
				args...)
			if err != nil {
				return err
			}
			out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Residence])
			if err != nil {
				return err
			}

			if req.PhoneNumbers != nil {
				if _, execErr := tx.Exec(ctx,
					`DELETE FROM residence_phone_numbers WHERE residence_id = $1`, id); execErr != nil {
					return fmt.Errorf("clear phone numbers: %w", execErr)
				}
				out.PhoneNumbers, err = insertPhoneNumbers(ctx, tx, id, *req.PhoneNumbers)
				if err != nil {
					return err
				}
			}
			if req.EmailAddresses != nil {
				if _, execErr := tx.Exec(ctx,
					`DELETE FROM residence_email_addresses WHERE residence_id = $1`, id); execErr != nil {
					return fmt.Errorf("clear email addresses: %w", execErr)
				}
				out.EmailAddresses, err = insertEmailAddresses(ctx, tx, id, *req.EmailAddresses)
				if err != nil {
					return err
				}
			}

			if req.PhoneNumbers == nil || req.EmailAddresses == nil {
				return loadUntouchedContacts(ctx, tx, &out, req)
			}
			return nil
		},
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResidenceNotFound
		}
		return nil, fmt.Errorf("update residence: %w", err)
	}
	return &out, nil
}

// Delete removes a residence; contact rows go with it via cascade.
func (r *ResidenceRepo) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := pgxutil.WithNativeConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, execErr := conn.Exec(ctx, `DELETE FROM residences WHERE id = $1`, id)
		if execErr != nil {
			return execErr
		}
		deleted = ct.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete residence: %w", err)
	}
	return deleted, nil
}

// ListChannelTargets returns one delivery target per (residence, address) pair
// on the channel, ordered by residence id then address id, so recipient
// resolution is deterministic.
func (r *ResidenceRepo) ListChannelTargets(
	ctx context.Context,
	channel model.Channel,
) ([]model.DeliveryTarget, error) {
	var query string
	switch channel {
	case model.ChannelEmail:
		query = `
			SELECT r.id, r.name, r.house_number, e.email
			FROM residences r
			JOIN residence_email_addresses e ON e.residence_id = r.id
			ORDER BY r.id, e.id`
	case model.ChannelSMS:
		query = `
			SELECT r.id, r.name, r.house_number, p.number
			FROM residences r
			JOIN residence_phone_numbers p ON p.residence_id = r.id
			ORDER BY r.id, p.id`
	default:
		return nil, fmt.Errorf("invalid channel: %q", channel)
	}

	var targets []model.DeliveryTarget
	if err := pgxutil.WithNativeConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var t model.DeliveryTarget
			if err := rows.Scan(&t.ResidenceID, &t.ResidenceName, &t.HouseNumber, &t.Address); err != nil {
				return err
			}
			targets = append(targets, t)
		}
		return rows.Err()
	}); err != nil {
		return nil, fmt.Errorf("failed to list %s targets: %w", channel, err)
	}
	return targets, nil
}

// --- helpers ---

// buildResidenceUpdateClause builds the SET clause for a residence update.
// updated_at is always bumped, which also covers contact-only updates.
func buildResidenceUpdateClause(req model.UpdateResidenceRequest, now time.Time) (string, []any) {
	setParts := make([]string, 0, 3)
	args := make([]any, 0, 3)
	nextIdx := func() int { return len(args) + 1 }

	if req.HouseNumber != nil {
		setParts = append(setParts, fmt.Sprintf("house_number = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.HouseNumber))
	}
	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Name))
	}
	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", nextIdx()))
	args = append(args, now)

	return strings.Join(setParts, ", "), args
}

func insertPhoneNumbers(
	ctx context.Context,
	tx pgx.Tx,
	residenceID int64,
	phones []model.PhoneNumberInput,
) ([]model.PhoneNumber, error) {
	out := make([]model.PhoneNumber, 0, len(phones))
	for _, p := range phones {
		rows, err := tx.Query(ctx, `
			INSERT INTO residence_phone_numbers (residence_id, number, label, is_primary)
			VALUES ($1, $2, $3, $4)
			RETURNING id, number, label, is_primary`,
			residenceID, strings.TrimSpace(p.Number), strings.TrimSpace(p.Label), p.IsPrimary)
		if err != nil {
			return nil, fmt.Errorf("insert phone number: %w", err)
		}
		phone, collectErr := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.PhoneNumber])
		if collectErr != nil {
			return nil, fmt.Errorf("collect phone number: %w", collectErr)
		}
		out = append(out, phone)
	}
	return out, nil
}

func insertEmailAddresses(
	ctx context.Context,
	tx pgx.Tx,
	residenceID int64,
	emails []model.EmailAddressInput,
) ([]model.EmailAddress, error) {
	out := make([]model.EmailAddress, 0, len(emails))
	for _, e := range emails {
		rows, err := tx.Query(ctx, `
			INSERT INTO residence_email_addresses (residence_id, email, label, is_primary)
			VALUES ($1, $2, $3, $4)
			RETURNING id, email, label, is_primary`,
			residenceID, strings.ToLower(strings.TrimSpace(e.Email)), strings.TrimSpace(e.Label), e.IsPrimary)
		if err != nil {
			return nil, fmt.Errorf("insert email address: %w", err)
		}
		email, collectErr := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.EmailAddress])
		if collectErr != nil {
			return nil, fmt.Errorf("collect email address: %w", collectErr)
		}
		out = append(out, email)
	}
	return out, nil
}

// phoneNumberRow matches the residence_phone_numbers schema exactly, allowing
// pgx.RowToStructByName to work for batched contact loading.
type phoneNumberRow struct {
	ID          int64  `db:"id"`
	ResidenceID int64  `db:"residence_id"`
	Number      string `db:"number"`
	Label       string `db:"label"`
	IsPrimary   bool   `db:"is_primary"`
}

type emailAddressRow struct {
	ID          int64  `db:"id"`
	ResidenceID int64  `db:"residence_id"`
	Email       string `db:"email"`
	Label       string `db:"label"`
	IsPrimary   bool   `db:"is_primary"`
}

// loadResidenceContacts attaches phone and email rows to the given residences
// in two batched queries.
func loadResidenceContacts(ctx context.Context, q pgxQuerier, residences []*model.Residence) error {
	if len(residences) == 0 {
		return nil
	}

	byID := make(map[int64]*model.Residence, len(residences))
	ids := make([]int64, 0, len(residences))
	for _, res := range residences {
		res.PhoneNumbers = []model.PhoneNumber{}
		res.EmailAddresses = []model.EmailAddress{}
		byID[res.ID] = res
		ids = append(ids, res.ID)
	}

	phoneRows, err := q.Query(ctx, `
		SELECT id, residence_id, number, label, is_primary
		FROM residence_phone_numbers
		WHERE residence_id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("load phone numbers: %w", err)
	}
	phones, err := pgx.CollectRows(phoneRows, pgx.RowToStructByName[phoneNumberRow])
	if err != nil {
		return fmt.Errorf("collect phone numbers: %w", err)
	}
	for _, p := range phones {
		if res, ok := byID[p.ResidenceID]; ok {
			res.PhoneNumbers = append(res.PhoneNumbers, model.PhoneNumber{
				ID:        p.ID,
				Number:    p.Number,
				Label:     p.Label,
				IsPrimary: p.IsPrimary,
			})
		}
	}

	emailRows, err := q.Query(ctx, `
		SELECT id, residence_id, email, label, is_primary
		FROM residence_email_addresses
		WHERE residence_id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("load email addresses: %w", err)
	}
	emails, err := pgx.CollectRows(emailRows, pgx.RowToStructByName[emailAddressRow])
	if err != nil {
		return fmt.Errorf("collect email addresses: %w", err)
	}
	for _, e := range emails {
		if res, ok := byID[e.ResidenceID]; ok {
			res.EmailAddresses = append(res.EmailAddresses, model.EmailAddress{
				ID:        e.ID,
				Email:     e.Email,
				Label:     e.Label,
				IsPrimary: e.IsPrimary,
			})
		}
	}
	return nil
}

// loadUntouchedContacts fills in whichever contact lists the update left alone.
func loadUntouchedContacts(
	ctx context.Context,
	tx pgx.Tx,
	out *model.Residence,
	req model.UpdateResidenceRequest,
) error {
	loaded := model.Residence{ID: out.ID}
	if err := loadResidenceContacts(ctx, tx, []*model.Residence{&loaded}); err != nil {
		return err
	}
	if req.PhoneNumbers == nil {
		out.PhoneNumbers = loaded.PhoneNumbers
	}
	if req.EmailAddresses == nil {
		out.EmailAddresses = loaded.EmailAddresses
	}
	return nil
}
