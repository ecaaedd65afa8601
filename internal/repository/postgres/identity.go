package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/internal/repository"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

type identityRepository struct {
	db *sqlx.DB
}

func NewIdentityRepository(db *sqlx.DB) repository.IdentityRepository {
	return &identityRepository{db: db}
}

const identityColumns = `
	id, local_id, birth_family_name, birth_given_name, birth_date, sex,
	birth_place_code, usual_name, all_given_names, preferred_name,
	normalized_family_name, status, quality_score, version, merged_into,
	merged_from, created_at, updated_at, deleted_at`

func (r *identityRepository) Create(ctx context.Context, identity *model.PatientIdentity) error {
	query := `
		INSERT INTO patient_identities (
			id, local_id, birth_family_name, birth_given_name, birth_date, sex,
			birth_place_code, usual_name, all_given_names, preferred_name,
			normalized_family_name, status, quality_score, version, merged_from,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	identity.CreatedAt = time.Now()
	identity.UpdatedAt = time.Now()
	identity.Version = 1

	mergedFrom, err := marshalMergedFrom(identity.MergedFrom)
	if err != nil {
		return err
	}

	_, err = q(ctx, r.db).ExecContext(ctx, query,
		identity.ID,
		identity.LocalID,
		identity.BirthFamilyName,
		identity.BirthGivenName,
		identity.BirthDate,
		identity.Sex,
		identity.BirthPlaceCode,
		identity.UsualName,
		identity.AllGivenNames,
		identity.PreferredName,
		identity.NormalizedName,
		identity.Status,
		identity.QualityScore,
		identity.Version,
		mergedFrom,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.Conflict("identity with this local id already exists", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	return nil
}

func (r *identityRepository) Get(ctx context.Context, id uuid.UUID) (*model.PatientIdentity, error) {
	query := `SELECT` + identityColumns + ` FROM patient_identities WHERE id = $1`
	var identity model.PatientIdentity
	err := q(ctx, r.db).GetContext(ctx, &identity, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("identity", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	if err := r.hydrate(ctx, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepository) GetByLocalID(ctx context.Context, localID string) (*model.PatientIdentity, error) {
	query := `SELECT` + identityColumns + ` FROM patient_identities WHERE local_id = $1`
	var identity model.PatientIdentity
	err := q(ctx, r.db).GetContext(ctx, &identity, query, localID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("identity", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity by local id: %w", err)
	}
	if err := r.hydrate(ctx, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Update writes trait and status fields conditioned on the version the caller
// read; zero rows affected means the record moved or was merged underneath.
func (r *identityRepository) Update(ctx context.Context, identity *model.PatientIdentity) error {
	query := `
		UPDATE patient_identities SET
			birth_family_name = $1, birth_given_name = $2, birth_date = $3,
			sex = $4, birth_place_code = $5, usual_name = $6,
			all_given_names = $7, preferred_name = $8,
			normalized_family_name = $9, status = $10, quality_score = $11,
			version = version + 1, updated_at = $12
		WHERE id = $13 AND version = $14 AND merged_into IS NULL
	`
	identity.UpdatedAt = time.Now()

	res, err := q(ctx, r.db).ExecContext(ctx, query,
		identity.BirthFamilyName,
		identity.BirthGivenName,
		identity.BirthDate,
		identity.Sex,
		identity.BirthPlaceCode,
		identity.UsualName,
		identity.AllGivenNames,
		identity.PreferredName,
		identity.NormalizedName,
		identity.Status,
		identity.QualityScore,
		identity.UpdatedAt,
		identity.ID,
		identity.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return apperrors.Conflict("identity version conflict or record is merged", nil)
	}
	identity.Version++
	return nil
}

func (r *identityRepository) List(ctx context.Context, filters *model.IdentityFilters) ([]*model.PatientIdentity, error) {
	query := `SELECT` + identityColumns + ` FROM patient_identities WHERE deleted_at IS NULL`
	args := []interface{}{}

	if filters != nil {
		if !filters.IncludeMerged {
			query += ` AND merged_into IS NULL`
		}
		if filters.Status != "" {
			args = append(args, filters.Status)
			query += fmt.Sprintf(` AND status = $%d`, len(args))
		}
		if filters.BelowQuality != nil {
			args = append(args, *filters.BelowQuality)
			query += fmt.Sprintf(` AND quality_score < $%d`, len(args))
		}
		if filters.SearchTerm != "" {
			args = append(args, "%"+filters.SearchTerm+"%")
			query += fmt.Sprintf(` AND (normalized_family_name LIKE $%d OR local_id LIKE $%d)`, len(args), len(args))
		}
	} else {
		query += ` AND merged_into IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	var identities []*model.PatientIdentity
	if err := q(ctx, r.db).SelectContext(ctx, &identities, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	for _, identity := range identities {
		if err := unmarshalMergedFrom(identity); err != nil {
			return nil, err
		}
	}
	return identities, nil
}

func (r *identityRepository) SearchByBirthDate(ctx context.Context, birthDate time.Time) ([]*model.PatientIdentity, error) {
	query := `SELECT` + identityColumns + `
		FROM patient_identities
		WHERE birth_date = $1 AND merged_into IS NULL AND deleted_at IS NULL`
	var identities []*model.PatientIdentity
	if err := q(ctx, r.db).SelectContext(ctx, &identities, query, birthDate); err != nil {
		return nil, fmt.Errorf("failed to search by birth date: %w", err)
	}
	return identities, nil
}

func (r *identityRepository) SearchByNormalizedName(ctx context.Context, normalizedName string) ([]*model.PatientIdentity, error) {
	query := `SELECT` + identityColumns + `
		FROM patient_identities
		WHERE normalized_family_name = $1 AND merged_into IS NULL AND deleted_at IS NULL`
	var identities []*model.PatientIdentity
	if err := q(ctx, r.db).SelectContext(ctx, &identities, query, normalizedName); err != nil {
		return nil, fmt.Errorf("failed to search by normalized name: %w", err)
	}
	return identities, nil
}

func (r *identityRepository) ListBelowQuality(ctx context.Context, threshold int) ([]*model.PatientIdentity, error) {
	query := `SELECT` + identityColumns + `
		FROM patient_identities
		WHERE quality_score < $1 AND merged_into IS NULL AND deleted_at IS NULL
		ORDER BY quality_score ASC`
	var identities []*model.PatientIdentity
	if err := q(ctx, r.db).SelectContext(ctx, &identities, query, threshold); err != nil {
		return nil, fmt.Errorf("failed to list identities below quality threshold: %w", err)
	}
	return identities, nil
}

// LockPair takes row locks on both identities in ascending id order so two
// merges racing on overlapping pairs cannot deadlock.
func (r *identityRepository) LockPair(ctx context.Context, a, b uuid.UUID) error {
	query := `SELECT id FROM patient_identities WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`
	var ids []uuid.UUID
	if err := q(ctx, r.db).SelectContext(ctx, &ids, query, a, b); err != nil {
		return fmt.Errorf("failed to lock identity pair: %w", err)
	}
	if len(ids) != 2 {
		return apperrors.NotFound("identity", nil)
	}
	return nil
}

func (r *identityRepository) MarkMerged(ctx context.Context, mergedID, survivorID uuid.UUID) error {
	query := `
		UPDATE patient_identities
		SET merged_into = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND merged_into IS NULL
	`
	res, err := q(ctx, r.db).ExecContext(ctx, query, survivorID, time.Now(), mergedID)
	if err != nil {
		return fmt.Errorf("failed to mark identity merged: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read merge result: %w", err)
	}
	if rows == 0 {
		return apperrors.Conflict("identity already merged", nil)
	}
	return nil
}

func (r *identityRepository) SetMergedFrom(ctx context.Context, id uuid.UUID, from []uuid.UUID) error {
	mergedFrom, err := marshalMergedFrom(from)
	if err != nil {
		return err
	}
	query := `
		UPDATE patient_identities
		SET merged_from = $1, version = version + 1, updated_at = $2
		WHERE id = $3
	`
	if _, err := q(ctx, r.db).ExecContext(ctx, query, mergedFrom, time.Now(), id); err != nil {
		return fmt.Errorf("failed to set merged_from: %w", err)
	}
	return nil
}

// RepointMergedInto flattens merge chains: every record previously merged
// into `from` now points directly at `to`.
func (r *identityRepository) RepointMergedInto(ctx context.Context, from, to uuid.UUID) error {
	query := `UPDATE patient_identities SET merged_into = $1, updated_at = $2 WHERE merged_into = $3`
	if _, err := q(ctx, r.db).ExecContext(ctx, query, to, time.Now(), from); err != nil {
		return fmt.Errorf("failed to repoint merged identities: %w", err)
	}
	return nil
}

func (r *identityRepository) UpsertINS(ctx context.Context, record *model.INSRecord) error {
	query := `
		INSERT INTO ins_records (id, identity_id, value, oid, type, source, qualification, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (identity_id) DO UPDATE SET
			value = EXCLUDED.value, oid = EXCLUDED.oid, type = EXCLUDED.type,
			source = EXCLUDED.source, qualification = EXCLUDED.qualification,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	_, err := q(ctx, r.db).ExecContext(ctx, query,
		record.ID, record.IdentityID, record.Value, record.OID,
		record.Type, record.Source, record.Qualification,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert INS record: %w", err)
	}
	return nil
}

func (r *identityRepository) GetINS(ctx context.Context, identityID uuid.UUID) (*model.INSRecord, error) {
	query := `SELECT * FROM ins_records WHERE identity_id = $1`
	var record model.INSRecord
	err := q(ctx, r.db).GetContext(ctx, &record, query, identityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("INS record", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get INS record: %w", err)
	}
	return &record, nil
}

func (r *identityRepository) AddAlias(ctx context.Context, alias *model.PatientAlias) error {
	query := `
		INSERT INTO patient_aliases (id, identity_id, family_name, given_name, kind, valid_from, valid_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if alias.CreatedAt.IsZero() {
		alias.CreatedAt = time.Now()
	}
	_, err := q(ctx, r.db).ExecContext(ctx, query,
		alias.ID, alias.IdentityID, alias.FamilyName, alias.GivenName,
		alias.Kind, alias.ValidFrom, alias.ValidUntil, alias.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add alias: %w", err)
	}
	return nil
}

func (r *identityRepository) ListAliases(ctx context.Context, identityID uuid.UUID) ([]*model.PatientAlias, error) {
	query := `SELECT * FROM patient_aliases WHERE identity_id = $1 ORDER BY created_at`
	var aliases []*model.PatientAlias
	if err := q(ctx, r.db).SelectContext(ctx, &aliases, query, identityID); err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	return aliases, nil
}

// ReassignAliases attaches the merged record's aliases to the survivor,
// preserving original timestamps.
func (r *identityRepository) ReassignAliases(ctx context.Context, fromIdentity, toIdentity uuid.UUID) error {
	query := `UPDATE patient_aliases SET identity_id = $1 WHERE identity_id = $2`
	if _, err := q(ctx, r.db).ExecContext(ctx, query, toIdentity, fromIdentity); err != nil {
		return fmt.Errorf("failed to reassign aliases: %w", err)
	}
	return nil
}

func (r *identityRepository) hydrate(ctx context.Context, identity *model.PatientIdentity) error {
	if err := unmarshalMergedFrom(identity); err != nil {
		return err
	}
	ins, err := r.GetINS(ctx, identity.ID)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	identity.INS = ins
	aliases, err := r.ListAliases(ctx, identity.ID)
	if err != nil {
		return err
	}
	identity.Aliases = aliases
	return nil
}

func marshalMergedFrom(from []uuid.UUID) (string, error) {
	if len(from) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(from)
	if err != nil {
		return "", fmt.Errorf("failed to marshal merged_from: %w", err)
	}
	return string(data), nil
}

func unmarshalMergedFrom(identity *model.PatientIdentity) error {
	if identity.MergedFromJSON == "" {
		identity.MergedFrom = nil
		return nil
	}
	if err := json.Unmarshal([]byte(identity.MergedFromJSON), &identity.MergedFrom); err != nil {
		return fmt.Errorf("failed to unmarshal merged_from for %s: %w", identity.ID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
