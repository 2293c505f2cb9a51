package models

import "time"

// CredentialRecord is the per-app-package row CredentialStore maintains.
// Invariant: one row per package — store() is a last-write-wins upsert.
type CredentialRecord struct {
	AppPackage      string    `json:"app_package"`
	Email           string    `json:"email"`
	Password        string    `json:"-"`
	Name            string    `json:"name,omitempty"`
	Extras          string    `json:"extras,omitempty"` // opaque JSON
	SignupCompleted bool      `json:"signup_completed"`
	LoginCount      int       `json:"login_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CredentialSummary is what list_all() returns: everything except the
// password, which CredentialStore never surfaces in a bulk listing.
type CredentialSummary struct {
	AppPackage      string    `json:"app_package"`
	Email           string    `json:"email"`
	Name            string    `json:"name,omitempty"`
	SignupCompleted bool      `json:"signup_completed"`
	LoginCount      int       `json:"login_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Summary strips the password from a CredentialRecord for bulk listing.
func (c *CredentialRecord) Summary() CredentialSummary {
	return CredentialSummary{
		AppPackage:      c.AppPackage,
		Email:           c.Email,
		Name:            c.Name,
		SignupCompleted: c.SignupCompleted,
		LoginCount:      c.LoginCount,
		UpdatedAt:       c.UpdatedAt,
	}
}
