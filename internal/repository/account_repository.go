package repository

import (
	"context"

	"github.com/spec-kit/inkmarket-service/internal/domain"
)

// PreferencesRepository stores per-user email preferences.
type PreferencesRepository interface {
	Create(ctx context.Context, prefs *domain.EmailPreferences) error
	GetByUserID(ctx context.Context, userID int64) (*domain.EmailPreferences, error)
}

// AgreementRepository stores terms-of-service acceptances.
type AgreementRepository interface {
	Create(ctx context.Context, agreement *domain.TOSAgreement) error
	ListByUserID(ctx context.Context, userID int64) ([]*domain.TOSAgreement, error)
}

// ArtistRepository stores artist profile extensions.
type ArtistRepository interface {
	Create(ctx context.Context, details *domain.ArtistDetails) error
	GetByUserID(ctx context.Context, userID int64) (*domain.ArtistDetails, error)
}

type preferencesRepository struct {
	db DBTX
}

func (r *preferencesRepository) Create(ctx context.Context, prefs *domain.EmailPreferences) error {
	const query = `
        INSERT INTO email_preferences (user_id, marketing, order_updates, messages)
        VALUES ($1, $2, $3, $4)`
	_, err := r.db.Exec(ctx, query, prefs.UserID, prefs.Marketing, prefs.OrderUpdates, prefs.Messages)
	return translate(err)
}

func (r *preferencesRepository) GetByUserID(ctx context.Context, userID int64) (*domain.EmailPreferences, error) {
	const query = `
        SELECT user_id, marketing, order_updates, messages
        FROM email_preferences WHERE user_id=$1`
	var prefs domain.EmailPreferences
	if err := r.db.QueryRow(ctx, query, userID).Scan(
		&prefs.UserID,
		&prefs.Marketing,
		&prefs.OrderUpdates,
		&prefs.Messages,
	); err != nil {
		return nil, err
	}
	return &prefs, nil
}

type agreementRepository struct {
	db DBTX
}

func (r *agreementRepository) Create(ctx context.Context, agreement *domain.TOSAgreement) error {
	const query = `
        INSERT INTO tos_agreements (user_id, version, ip_address, agreed_at)
        VALUES ($1, $2, $3, $4)`
	_, err := r.db.Exec(ctx, query, agreement.UserID, agreement.Version, agreement.IPAddress, agreement.AgreedAt)
	return translate(err)
}

func (r *agreementRepository) ListByUserID(ctx context.Context, userID int64) ([]*domain.TOSAgreement, error) {
	const query = `
        SELECT user_id, version, ip_address, agreed_at
        FROM tos_agreements WHERE user_id=$1 ORDER BY agreed_at`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agreements []*domain.TOSAgreement
	for rows.Next() {
		var a domain.TOSAgreement
		if err := rows.Scan(&a.UserID, &a.Version, &a.IPAddress, &a.AgreedAt); err != nil {
			return nil, err
		}
		agreements = append(agreements, &a)
	}
	return agreements, rows.Err()
}

type artistRepository struct {
	db DBTX
}

func (r *artistRepository) Create(ctx context.Context, details *domain.ArtistDetails) error {
	const query = `
        INSERT INTO artist_details (user_id, city, state, zipcode, styles_offered)
        VALUES ($1, $2, $3, $4, $5)`
	styles := details.StylesOffered
	if styles == nil {
		styles = []string{}
	}
	_, err := r.db.Exec(ctx, query, details.UserID, details.City, details.State, details.Zipcode, styles)
	return translate(err)
}

func (r *artistRepository) GetByUserID(ctx context.Context, userID int64) (*domain.ArtistDetails, error) {
	const query = `
        SELECT user_id, city, state, zipcode, styles_offered
        FROM artist_details WHERE user_id=$1`
	var d domain.ArtistDetails
	if err := r.db.QueryRow(ctx, query, userID).Scan(
		&d.UserID,
		&d.City,
		&d.State,
		&d.Zipcode,
		&d.StylesOffered,
	); err != nil {
		return nil, err
	}
	return &d, nil
}
