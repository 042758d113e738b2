// Package project resolves the calling tenant from request headers. The
// two-tier fallback (explicit header → configured default project) lets
// single-tenant deployments run with zero client headers while multi-tenant
// callers route explicitly.
package project

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/revline/identity-engine/internal/apperr"
	"github.com/revline/identity-engine/internal/model"
	"github.com/revline/identity-engine/internal/repository"
)

// Resolver maps request headers to a project through the caching project
// store.
type Resolver struct {
	projects repository.ProjectStore

	clientIDHeader     string
	clientSecretHeader string
	defaultClientID    string
	defaultSecret      string
}

func NewResolver(projects repository.ProjectStore, clientIDHeader, clientSecretHeader, defaultClientID, defaultSecret string) *Resolver {
	return &Resolver{
		projects:           projects,
		clientIDHeader:     clientIDHeader,
		clientSecretHeader: clientSecretHeader,
		defaultClientID:    defaultClientID,
		defaultSecret:      defaultSecret,
	}
}

// FromRequest resolves the project for a request. Header credentials win;
// absent headers fall back to the configured default project. When the
// explicit client id resolves to nothing and a default is configured, the
// default is tried before giving up. With requireSecret set, the supplied
// client secret must match the resolved project's secret exactly.
func (r *Resolver) FromRequest(ctx context.Context, req *http.Request, requireSecret bool) (*model.Project, error) {
	clientID := req.Header.Get(r.clientIDHeader)
	clientSecret := req.Header.Get(r.clientSecretHeader)
	if clientID == "" {
		clientID = r.defaultClientID
		clientSecret = r.defaultSecret
	}

	p, err := r.resolve(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if requireSecret {
		if subtle.ConstantTimeCompare([]byte(clientSecret), []byte(p.ClientSecret)) != 1 {
			return nil, apperr.ProjectNotFound().WithMeta("clientId", clientID)
		}
	}
	return p, nil
}

func (r *Resolver) resolve(ctx context.Context, clientID string) (*model.Project, error) {
	p, err := r.projects.GetByClientID(ctx, clientID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	// Unknown explicit client id: retry against the default project before
	// failing, so stale first-party clients keep working.
	if r.defaultClientID != "" && clientID != r.defaultClientID {
		p, err = r.projects.GetByClientID(ctx, r.defaultClientID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, apperr.ProjectNotFound().WithMeta("clientId", clientID)
}
