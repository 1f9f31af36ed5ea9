package domain

import "time"

// CurrentTOSVersion is recorded on every agreement created at signup.
const CurrentTOSVersion = "2024-01"

// EmailPreferences controls which non-transactional mail a user receives.
type EmailPreferences struct {
	UserID       int64 `json:"-"`
	Marketing    bool  `json:"marketing"`
	OrderUpdates bool  `json:"orderUpdates"`
	Messages     bool  `json:"messages"`
}

// DefaultEmailPreferences opts a new account into everything.
func DefaultEmailPreferences(userID int64) *EmailPreferences {
	return &EmailPreferences{UserID: userID, Marketing: true, OrderUpdates: true, Messages: true}
}

// TOSAgreement records acceptance of the terms of service.
type TOSAgreement struct {
	UserID    int64     `json:"-"`
	Version   string    `json:"version"`
	IPAddress string    `json:"ipAddress"`
	AgreedAt  time.Time `json:"agreedAt"`
}

// ArtistDetails is the artist-only profile extension.
type ArtistDetails struct {
	UserID        int64    `json:"-"`
	City          string   `json:"city"`
	State         string   `json:"state"`
	Zipcode       string   `json:"zipcode"`
	StylesOffered []string `json:"stylesOffered"`
}
