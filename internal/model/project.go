package model

import "time"

// Project represents a tenant as stored in the `projects` table. The client
// id is the sole external routing key: requests carry it in a header and the
// resolver maps it to a project. The client secret is only compared when a
// route explicitly requires it.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – default display name.
//  ClientID     – globally unique public identifier.
//  ClientSecret – shared secret for routes that demand it.
//  Public       – whether the project appears in public listings.
//  NameLocale   – locale → display name overrides, stored as JSON.
type Project struct {
	ID           uint64            // projects.id
	Name         string            // projects.name
	ClientID     string            // projects.client_id
	ClientSecret string            // projects.client_secret
	Public       bool              // projects.public
	NameLocale   map[string]string // projects.name_locale (JSON)
	CreatedAt    time.Time         // projects.created_at
	UpdatedAt    time.Time         // projects.updated_at
}

// DisplayName returns the localized name for the given locale, falling back
// to the default name.
func (p *Project) DisplayName(locale string) string {
	if name, ok := p.NameLocale[locale]; ok && name != "" {
		return name
	}
	return p.Name
}

// Sanitized returns a copy with the client secret stripped for public
// listings.
func (p Project) Sanitized() Project {
	p.ClientSecret = ""
	return p
}
