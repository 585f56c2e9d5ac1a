package repository

import (
	"auth_service/internal/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type postgresProfileRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewPostgresProfileRepository(db *sql.DB, logger *logrus.Logger) domain.ProfileStore {
	return &postgresProfileRepository{
		db:  db,
		log: logger,
	}
}

// uniqueViolation converts a pq unique violation into a backend error that
// carries the database message, like the hosted service does.
func uniqueViolation(err error) (*domain.BackendError, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return &domain.BackendError{
			Status:  409,
			Code:    string(pqErr.Code),
			Message: pqErr.Message,
			Err:     domain.ErrAlreadyExists,
		}, true
	}
	return nil, false
}

func (r *postgresProfileRepository) GetProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	query := `
        SELECT id, email, name, COALESCE(username, ''), bio, phone, gender, updated_at
        FROM profiles
        WHERE id = $1`
	profile := &domain.UserProfile{}
	var updatedAt sql.NullTime

	r.log.Debugf("Repository: Attempting to find profile by ID: %s", id)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&profile.ID,
		&profile.Email,
		&profile.Name,
		&profile.Username,
		&profile.Bio,
		&profile.Phone,
		&profile.Gender,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Repository: Profile with ID %s not found", id)
			return nil, fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
		}
		r.log.Errorf("Repository: Failed to get profile by ID %s: %v", id, err)
		return nil, fmt.Errorf("could not get profile by id: %w", err)
	}
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		profile.UpdatedAt = &t
	}

	r.log.Debugf("Repository: Profile found by ID %s (Email: %s)", id, profile.Email)
	return profile, nil
}

func (r *postgresProfileRepository) InsertProfile(ctx context.Context, profile *domain.UserProfile) error {
	query := `
        INSERT INTO profiles (id, email, name, username, bio, phone, gender, updated_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`

	var updatedAt sql.NullTime
	if profile.UpdatedAt != nil {
		updatedAt = sql.NullTime{Time: *profile.UpdatedAt, Valid: true}
	}

	r.log.Debugf("Repository: Attempting to insert profile %s", profile.ID)

	_, err := r.db.ExecContext(ctx, query,
		profile.ID,
		profile.Email,
		profile.Name,
		profile.Username,
		profile.Bio,
		profile.Phone,
		profile.Gender,
		updatedAt,
	)
	if err != nil {
		if be, ok := uniqueViolation(err); ok {
			r.log.Warnf("Repository: Duplicate profile for ID %s: %s", profile.ID, be.Message)
			return be
		}
		r.log.Errorf("Repository: Failed to insert profile %s: %v", profile.ID, err)
		return fmt.Errorf("could not insert profile: %w", err)
	}

	r.log.Infof("Repository: Profile inserted with ID: %s", profile.ID)
	return nil
}

func (r *postgresProfileRepository) UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch, updatedAt time.Time) error {
	fields := patch.Fields()
	columns := make([]string, 0, len(fields))
	for column := range fields {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	sets := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+2)
	for i, column := range columns {
		placeholder := fmt.Sprintf("$%d", i+1)
		if column == "username" {
			// empty usernames are stored as NULL, see InsertProfile
			placeholder = "NULLIF(" + placeholder + ", '')"
		}
		sets = append(sets, fmt.Sprintf("%s = %s", pq.QuoteIdentifier(column), placeholder))
		args = append(args, fields[column])
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)+1))
	args = append(args, updatedAt.UTC())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE profiles SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	r.log.Debugf("Repository: Updating profile %s (columns: %v)", id, columns)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if be, ok := uniqueViolation(err); ok {
			r.log.Warnf("Repository: Update of profile %s violates uniqueness: %s", id, be.Message)
			return be
		}
		r.log.Errorf("Repository: Failed to update profile %s: %v", id, err)
		return fmt.Errorf("could not update profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not read affected rows: %w", err)
	}
	if affected == 0 {
		r.log.Warnf("Repository: Profile with ID %s not found for update", id)
		return fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
	}

	r.log.Infof("Repository: Profile %s updated", id)
	return nil
}
