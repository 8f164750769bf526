package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bloodlink/internal/identity/models"
	"bloodlink/internal/platform/postgres"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

const accountColumns = `id, email, name, avatar_url, district, upazila, blood_group, role, status, created_at, updated_at`

// PostgresStore persists accounts in the accounts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts the account; the email unique index turns duplicates into ErrAlreadyUsed.
func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		account.ID.String(), account.Email, account.Name, account.AvatarURL,
		account.District, account.Upazila, string(account.BloodGroup),
		string(account.Role), string(account.Status), account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID.String())
	return scanOne(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanOne(row)
}

func (s *PostgresStore) List(ctx context.Context, filter models.AccountFilter) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	var args []any
	if filter.Email != "" {
		query += ` WHERE email = $1`
		args = append(args, filter.Email)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

// UpdateProfile sets only the columns named in update.
func (s *PostgresStore) UpdateProfile(ctx context.Context, accountID id.AccountID, update models.ProfileUpdate, now time.Time) (*models.Account, error) {
	sets := []string{"updated_at = $1"}
	args := []any{now}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.AvatarURL != nil {
		add("avatar_url", *update.AvatarURL)
	}
	if update.District != nil {
		add("district", *update.District)
	}
	if update.Upazila != nil {
		add("upazila", *update.Upazila)
	}
	if update.BloodGroup != nil {
		add("blood_group", string(*update.BloodGroup))
	}
	args = append(args, accountID.String())
	query := fmt.Sprintf(`UPDATE accounts SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), accountColumns)
	return scanOne(s.db.QueryRowContext(ctx, query, args...))
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, accountID id.AccountID, status models.AccountStatus, now time.Time) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE accounts SET status = $1, updated_at = $2 WHERE id = $3
		RETURNING `+accountColumns, string(status), now, accountID.String())
	return scanOne(row)
}

func (s *PostgresStore) UpdateRole(ctx context.Context, accountID id.AccountID, role models.Role, now time.Time) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE accounts SET role = $1, updated_at = $2 WHERE id = $3
		RETURNING `+accountColumns, string(role), now, accountID.String())
	return scanOne(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*models.Account, error) {
	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return acc, err
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		rawID      string
		bloodGroup string
		role       string
		status     string
		acc        models.Account
	)
	err := row.Scan(&rawID, &acc.Email, &acc.Name, &acc.AvatarURL, &acc.District, &acc.Upazila,
		&bloodGroup, &role, &status, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	accountID, err := id.ParseAccountID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse account id: %w", err)
	}
	acc.ID = accountID
	acc.BloodGroup = id.BloodGroup(bloodGroup)
	acc.Role = models.Role(role)
	acc.Status = models.AccountStatus(status)
	return &acc, nil
}
