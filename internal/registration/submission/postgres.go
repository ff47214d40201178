// internal/registration/submission/postgres.go
package submission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"msad-registration/internal/models"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// RecordStore persists application records.
type RecordStore interface {
	Insert(ctx context.Context, rec *models.ApplicationRecord) (string, error)
}

// PostgresStore writes records into the contestants table.
type PostgresStore struct {
	db    *sql.DB
	table string
}

func NewPostgresStore(db *sql.DB, table string) (*PostgresStore, error) {
	if table == "" {
		table = "contestants"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{db: db, table: table}, nil
}

// Insert writes rec in one statement and returns the generated id. A clash
// on application_number is reported as ErrDuplicateReference.
func (s *PostgresStore) Insert(ctx context.Context, rec *models.ApplicationRecord) (string, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			application_number, user_id, first_name, last_name, email, phone,
			date_of_birth, age, province, city, address, disability_type,
			disability_description, height, weight, emergency_contact_name,
			emergency_contact_phone, education_level, occupation, achievements,
			hobbies, languages_spoken, talent_description, platform_cause,
			why_compete, previous_pageant_experience, photo_url, id_document_url,
			medical_certificate_url, medical_clearance, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32
		) RETURNING id`, s.table)

	var id string
	err := s.db.QueryRowContext(ctx, query,
		rec.ApplicationNumber,
		rec.UserID,
		rec.FirstName,
		rec.LastName,
		rec.Email,
		rec.Phone,
		rec.DateOfBirth,
		rec.Age,
		rec.Province,
		rec.City,
		rec.Address,
		rec.DisabilityType,
		rec.DisabilityDescription,
		rec.Height,
		rec.Weight,
		rec.EmergencyContactName,
		rec.EmergencyContactPhone,
		rec.EducationLevel,
		rec.Occupation,
		rec.Achievements,
		rec.Hobbies,
		pq.Array(rec.LanguagesSpoken),
		rec.TalentDescription,
		rec.PlatformCause,
		rec.WhyCompete,
		rec.PreviousPageantExperience,
		rec.PhotoURL,
		rec.IDDocumentURL,
		rec.MedicalCertificateURL,
		rec.MedicalClearance,
		rec.Status,
		rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return "", fmt.Errorf("%w: %s", ErrDuplicateReference, pqErr.Message)
		}
		return "", fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	return id, nil
}

// EnsureSchema creates the contestants table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			application_number TEXT NOT NULL,
			user_id TEXT,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL,
			date_of_birth DATE NOT NULL,
			age INTEGER NOT NULL,
			province TEXT NOT NULL,
			city TEXT NOT NULL,
			address TEXT,
			disability_type TEXT,
			disability_description TEXT,
			height NUMERIC,
			weight NUMERIC,
			emergency_contact_name TEXT,
			emergency_contact_phone TEXT,
			education_level TEXT,
			occupation TEXT,
			achievements TEXT,
			hobbies TEXT,
			languages_spoken TEXT[] NOT NULL DEFAULT '{}',
			talent_description TEXT,
			platform_cause TEXT,
			why_compete TEXT,
			previous_pageant_experience TEXT,
			photo_url TEXT,
			id_document_url TEXT,
			medical_certificate_url TEXT,
			medical_clearance BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT %[1]s_application_number_key UNIQUE (application_number)
		)`, s.table)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure %s schema: %w", s.table, err)
	}
	return nil
}

// Get loads one record by id. A missing row is ErrRecordNotFound.
func (s *PostgresStore) Get(ctx context.Context, id string) (*models.ApplicationRecord, error) {
	query := fmt.Sprintf(`
		SELECT
			id, application_number, user_id, first_name, last_name, email, phone,
			to_char(date_of_birth, 'YYYY-MM-DD'), age, province, city,
			COALESCE(address, ''), COALESCE(disability_type, ''),
			COALESCE(disability_description, ''), height, weight,
			COALESCE(emergency_contact_name, ''), COALESCE(emergency_contact_phone, ''),
			COALESCE(education_level, ''), COALESCE(occupation, ''),
			COALESCE(achievements, ''), COALESCE(hobbies, ''), languages_spoken,
			COALESCE(talent_description, ''), COALESCE(platform_cause, ''),
			COALESCE(why_compete, ''), COALESCE(previous_pageant_experience, ''),
			photo_url, id_document_url, medical_certificate_url,
			medical_clearance, status, created_at
		FROM %s WHERE id = $1`, s.table)

	var (
		rec                   models.ApplicationRecord
		userID                sql.NullString
		height, weight        sql.NullFloat64
		photo, idDoc, medical sql.NullString
		languages             pq.StringArray
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.ApplicationNumber,
		&userID,
		&rec.FirstName,
		&rec.LastName,
		&rec.Email,
		&rec.Phone,
		&rec.DateOfBirth,
		&rec.Age,
		&rec.Province,
		&rec.City,
		&rec.Address,
		&rec.DisabilityType,
		&rec.DisabilityDescription,
		&height,
		&weight,
		&rec.EmergencyContactName,
		&rec.EmergencyContactPhone,
		&rec.EducationLevel,
		&rec.Occupation,
		&rec.Achievements,
		&rec.Hobbies,
		&languages,
		&rec.TalentDescription,
		&rec.PlatformCause,
		&rec.WhyCompete,
		&rec.PreviousPageantExperience,
		&photo,
		&idDoc,
		&medical,
		&rec.MedicalClearance,
		&rec.Status,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", s.table, id, err)
	}

	rec.UserID = nullString(userID)
	rec.PhotoURL = nullString(photo)
	rec.IDDocumentURL = nullString(idDoc)
	rec.MedicalCertificateURL = nullString(medical)
	if height.Valid {
		rec.Height = &height.Float64
	}
	if weight.Valid {
		rec.Weight = &weight.Float64
	}
	rec.LanguagesSpoken = []string(languages)
	return &rec, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
