package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"bloodlink/internal/donation/models"
	"bloodlink/internal/platform/postgres"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

const requestColumns = `id, requester_email, requester_name, recipient_name, recipient_blood_group,
	hospital_name, district, upazila, full_address, donation_date, donation_time, request_message,
	donation_status, donor_name, donor_email, created_at, updated_at`

// PostgresStore persists donation requests. State changes are single conditional
// UPDATE statements so the row lock serializes competing writers.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, req *models.DonationRequest) error {
	var donorName, donorEmail sql.NullString
	if req.Donor != nil {
		donorName = sql.NullString{String: req.Donor.Name, Valid: true}
		donorEmail = sql.NullString{String: req.Donor.Email, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donation_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		req.ID.String(), req.RequesterEmail, req.RequesterName, req.RecipientName,
		string(req.RecipientBloodGroup), req.HospitalName, req.District, req.Upazila,
		req.FullAddress, req.DonationDate, req.DonationTime, req.RequestMessage,
		string(req.Status), donorName, donorEmail, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert donation request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.DonationRequestID) (*models.DonationRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM donation_requests WHERE id = $1`, requestID.String())
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return req, err
}

func (s *PostgresStore) List(ctx context.Context, filter models.RequestFilter) ([]*models.DonationRequest, error) {
	where, args := whereClause(filter)
	query := `SELECT ` + requestColumns + ` FROM donation_requests` + where + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list donation requests: %w", err)
	}
	defer rows.Close()

	out := []*models.DonationRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donation requests: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context, filter models.RequestFilter) (int, error) {
	where, args := whereClause(filter)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM donation_requests`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count donation requests: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Update(ctx context.Context, requestID id.DonationRequestID, u models.RequestUpdate, now time.Time) (*models.DonationRequest, error) {
	sets := []string{"updated_at = $1"}
	args := []any{now}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if u.RecipientName != nil {
		add("recipient_name", *u.RecipientName)
	}
	if u.RecipientBloodGroup != nil {
		add("recipient_blood_group", string(*u.RecipientBloodGroup))
	}
	if u.HospitalName != nil {
		add("hospital_name", *u.HospitalName)
	}
	if u.District != nil {
		add("district", *u.District)
	}
	if u.Upazila != nil {
		add("upazila", *u.Upazila)
	}
	if u.FullAddress != nil {
		add("full_address", *u.FullAddress)
	}
	if u.DonationDate != nil {
		add("donation_date", *u.DonationDate)
	}
	if u.DonationTime != nil {
		add("donation_time", *u.DonationTime)
	}
	if u.RequestMessage != nil {
		add("request_message", *u.RequestMessage)
	}
	args = append(args, requestID.String(), string(models.StatusPending))
	query := fmt.Sprintf(`UPDATE donation_requests SET %s WHERE id = $%d AND donation_status = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args)-1, len(args), requestColumns)
	return s.conditional(ctx, requestID, s.db.QueryRowContext(ctx, query, args...))
}

func (s *PostgresStore) Claim(ctx context.Context, requestID id.DonationRequestID, donor models.Donor, now time.Time) (*models.DonationRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE donation_requests
		SET donation_status = $1, donor_name = $2, donor_email = $3, updated_at = $4
		WHERE id = $5 AND donation_status = $6
		RETURNING `+requestColumns,
		string(models.StatusInProgress), donor.Name, donor.Email, now,
		requestID.String(), string(models.StatusPending))
	return s.conditional(ctx, requestID, row)
}

func (s *PostgresStore) Transition(ctx context.Context, requestID id.DonationRequestID, from []models.Status, to models.Status, now time.Time) (*models.DonationRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE donation_requests
		SET donation_status = $1, updated_at = $2
		WHERE id = $3 AND donation_status = ANY($4::text[])
		RETURNING `+requestColumns,
		string(to), now, requestID.String(), pq.Array(statusStrings(from)))
	return s.conditional(ctx, requestID, row)
}

func (s *PostgresStore) Delete(ctx context.Context, requestID id.DonationRequestID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM donation_requests WHERE id = $1`, requestID.String())
	if err != nil {
		return fmt.Errorf("delete donation request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete donation request: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// conditional resolves a guarded UPDATE ... RETURNING. No row means either the id is
// unknown or the status guard failed; a follow-up existence check tells them apart.
func (s *PostgresStore) conditional(ctx context.Context, requestID id.DonationRequestID, row *sql.Row) (*models.DonationRequest, error) {
	req, err := scanRequest(row)
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM donation_requests WHERE id = $1)`, requestID.String()).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check donation request: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrInvalidState
}

func whereClause(filter models.RequestFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.RequesterEmail != "" {
		args = append(args, filter.RequesterEmail)
		conds = append(conds, fmt.Sprintf("requester_email = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, pq.Array(statusStrings(filter.Statuses)))
		conds = append(conds, fmt.Sprintf("donation_status = ANY($%d::text[])", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.DonationRequest, error) {
	var (
		req        models.DonationRequest
		rawID      string
		bloodGroup string
		status     string
		donorName  sql.NullString
		donorEmail sql.NullString
	)
	err := row.Scan(&rawID, &req.RequesterEmail, &req.RequesterName, &req.RecipientName, &bloodGroup,
		&req.HospitalName, &req.District, &req.Upazila, &req.FullAddress, &req.DonationDate,
		&req.DonationTime, &req.RequestMessage, &status, &donorName, &donorEmail,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan donation request: %w", err)
	}
	requestID, err := id.ParseDonationRequestID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse donation request id: %w", err)
	}
	req.ID = requestID
	req.RecipientBloodGroup = id.BloodGroup(bloodGroup)
	req.Status = models.Status(status)
	if donorName.Valid && donorEmail.Valid {
		req.Donor = &models.Donor{Name: donorName.String, Email: donorEmail.String}
	}
	return &req, nil
}
