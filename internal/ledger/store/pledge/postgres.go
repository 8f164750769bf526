package pledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bloodlink/internal/ledger/models"
	"bloodlink/pkg/platform/sentinel"
)

const pledgeColumns = `transaction_id, session_id, amount, currency, donor_name, donor_email, recorded_at`

// PostgresStore keeps pledges in the pledges table; transaction_id is the primary key.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByTransactionID(ctx context.Context, transactionID string) (*models.PledgeRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pledgeColumns+` FROM pledges WHERE transaction_id = $1`, transactionID)
	rec, err := scanPledge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return rec, err
}

// InsertIfAbsent relies on ON CONFLICT DO NOTHING; zero affected rows means another
// writer recorded the transaction first.
func (s *PostgresStore) InsertIfAbsent(ctx context.Context, rec *models.PledgeRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pledges (`+pledgeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_id) DO NOTHING`,
		rec.TransactionID, rec.SessionID, rec.Amount, rec.Currency, rec.DonorName, rec.DonorEmail, rec.RecordedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert pledge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert pledge: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) ListByDonorEmail(ctx context.Context, donorEmail string) ([]*models.PledgeRecord, error) {
	return s.query(ctx, `SELECT `+pledgeColumns+` FROM pledges WHERE donor_email = $1
		ORDER BY recorded_at DESC, transaction_id`, donorEmail)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.PledgeRecord, error) {
	return s.query(ctx, `SELECT `+pledgeColumns+` FROM pledges ORDER BY recorded_at DESC, transaction_id`)
}

func (s *PostgresStore) Total(ctx context.Context) (int64, int, error) {
	var total int64
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM pledges`).Scan(&total, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("sum pledges: %w", err)
	}
	return total, count, nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.PledgeRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pledges: %w", err)
	}
	defer rows.Close()

	out := []*models.PledgeRecord{}
	for rows.Next() {
		rec, err := scanPledge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pledges: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPledge(row rowScanner) (*models.PledgeRecord, error) {
	var rec models.PledgeRecord
	err := row.Scan(&rec.TransactionID, &rec.SessionID, &rec.Amount, &rec.Currency,
		&rec.DonorName, &rec.DonorEmail, &rec.RecordedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan pledge: %w", err)
	}
	return &rec, nil
}
