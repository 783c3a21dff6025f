package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/data/pgxutil"
	"github.com/gagyekum/residency/internal/domain/model"
	"github.com/jackc/pgx/v5"
)

// errRecipientNotPending aborts a marking transaction when the guarded row
// update matched nothing, rolling back the counter bump with it.
var errRecipientNotPending = errors.New("recipient is not pending")

const recipientPageSize = 10

const recipientColumns = `
  id,
  job_id,
  channel,
  residence_id,
  residence_name,
  house_number,
  address,
  status,
  error_message,
  sent_at
`

// RecipientRepo provides database operations for message recipients.
type RecipientRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewRecipientRepo creates a RecipientRepo on the system clock.
func NewRecipientRepo(db *sql.DB) *RecipientRepo {
	return &RecipientRepo{DB: db, clock: systemClock{}}
}

// NewRecipientRepoWithClock creates a RecipientRepo that reads time from clock.
func NewRecipientRepoWithClock(db *sql.DB, clock Clock) *RecipientRepo {
	return &RecipientRepo{DB: db, clock: clock}
}

// ListPending returns up to Limit pending recipients for one channel of a job
// in ascending id order, which keeps dispatch order stable across batches.
func (r *RecipientRepo) ListPending(
	ctx context.Context,
	params core.ListPendingRecipientsParams,
) ([]*model.Recipient, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50 // Default limit
	}

	var recipients []*model.Recipient
	if err := pgxutil.WithNativeConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+recipientColumns+`
			FROM message_recipients
			WHERE job_id = $1 AND channel = $2 AND status = 'pending'
			ORDER BY id
			LIMIT $3`, params.JobID, params.Channel, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		recipients, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Recipient])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list pending recipients: %w", err)
	}
	return recipients, nil
}

// MarkSent flips a pending recipient to sent and increments the job's sent
// counter for the channel in one transaction. Returns false when the row was
// not pending anymore. The job row is updated before the recipient row so
// counter updates and retry acquire row locks in the same order.
func (r *RecipientRepo) MarkSent(ctx context.Context, key core.RecipientKey) (bool, error) {
	col, err := sentCounterColumn(key.Channel)
	if err != nil {
		return false, err
	}

	now := r.clock.Now().UTC()
	err = pgxutil.WithNativeTx(ctx, r.DB,
		&sql.TxOptions{Isolation: sql.LevelReadCommitted},
		func(tx pgx.Tx) error {
			if _, execErr := tx.Exec(ctx, fmt.Sprintf(`
				UPDATE message_jobs
				SET %s = %s + 1, updated_at = $2
				WHERE id = $1`, col, col), key.JobID, now); execErr != nil {
				return fmt.Errorf("bump job sent counter: %w", execErr)
			}

			ct, execErr := tx.Exec(ctx, `
				UPDATE message_recipients
				SET status = 'sent', sent_at = $4
				WHERE id = $1 AND job_id = $2 AND channel = $3 AND status = 'pending'`,
				key.ID, key.JobID, key.Channel, now)
			if execErr != nil {
				return fmt.Errorf("mark recipient sent: %w", execErr)
			}
			if ct.RowsAffected() == 0 {
				return errRecipientNotPending
			}
			return nil
		},
	)
	if errors.Is(err, errRecipientNotPending) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to mark recipient sent: %w", err)
	}
	return true, nil
}

// MarkFailed flips a pending recipient to failed with the delivery error and
// increments the job's failed counter for the channel in one transaction.
// Returns false when the row was not pending anymore.
func (r *RecipientRepo) MarkFailed(ctx context.Context, key core.RecipientKey, errMsg string) (bool, error) {
	col, err := failedCounterColumn(key.Channel)
	if err != nil {
		return false, err
	}

	now := r.clock.Now().UTC()
	err = pgxutil.WithNativeTx(ctx, r.DB,
		&sql.TxOptions{Isolation: sql.LevelReadCommitted},
		func(tx pgx.Tx) error {
			if _, execErr := tx.Exec(ctx, fmt.Sprintf(`
				UPDATE message_jobs
				SET %s = %s + 1, updated_at = $2
				WHERE id = $1`, col, col), key.JobID, now); execErr != nil {
				return fmt.Errorf("bump job failed counter: %w", execErr)
			}

			ct, execErr := tx.Exec(ctx, `
				UPDATE message_recipients
				SET status = 'failed', error_message = $4
				WHERE id = $1 AND job_id = $2 AND channel = $3 AND status = 'pending'`,
				key.ID, key.JobID, key.Channel, errMsg)
			if execErr != nil {
				return fmt.Errorf("mark recipient failed: %w", execErr)
			}
			if ct.RowsAffected() == 0 {
				return errRecipientNotPending
			}
			return nil
		},
	)
	if errors.Is(err, errRecipientNotPending) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to mark recipient failed: %w", err)
	}
	return true, nil
}

// Page returns one fixed-size page of a job's recipients for one channel.
// Page numbering starts at 1 and rows come back in dispatch order.
func (r *RecipientRepo) Page(
	ctx context.Context,
	params core.RecipientPageParams,
) (*model.RecipientPage, error) {
	page := params.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * recipientPageSize

	var (
		total   int
		results []model.Recipient
	)
	if err := pgxutil.WithNativeConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if err := conn.QueryRow(ctx, `
			SELECT count(*) FROM message_recipients
			WHERE job_id = $1 AND channel = $2`,
			params.JobID, params.Channel).Scan(&total); err != nil {
			return err
		}
		rows, err := conn.Query(ctx, `
			SELECT `+recipientColumns+`
			FROM message_recipients
			WHERE job_id = $1 AND channel = $2
			ORDER BY id
			LIMIT $3 OFFSET $4`,
			params.JobID, params.Channel, recipientPageSize, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		results, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Recipient])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to page recipients: %w", err)
	}

	return &model.RecipientPage{
		Count:   total,
		Next:    offset+len(results) < total,
		Page:    page,
		Results: results,
	}, nil
}

func sentCounterColumn(c model.Channel) (string, error) {
	switch c {
	case model.ChannelEmail:
		return "email_sent_count", nil
	case model.ChannelSMS:
		return "sms_sent_count", nil
	}
	return "", fmt.Errorf("invalid channel: %q", c)
}

func failedCounterColumn(c model.Channel) (string, error) {
	switch c {
	case model.ChannelEmail:
		return "email_failed_count", nil
	case model.ChannelSMS:
		return "sms_failed_count", nil
	}
	return "", fmt.Errorf("invalid channel: %q", c)
}
