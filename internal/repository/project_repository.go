package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/revline/identity-engine/internal/model"
)

const projectColumns = "id,name,client_id,client_secret,public,name_locale,created_at,updated_at"

// ProjectRepo persists projects (tenants) in the `projects` table.
type ProjectRepo struct{ DB *sql.DB }

func NewProjectRepo(db *sql.DB) *ProjectRepo { return &ProjectRepo{DB: db} }

func scanProject(scan func(dest ...any) error) (*model.Project, error) {
	var (
		p      model.Project
		locale sql.NullString
	)
	err := scan(&p.ID, &p.Name, &p.ClientID, &p.ClientSecret, &p.Public,
		&locale, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if locale.Valid && locale.String != "" {
		// name_locale is stored as a JSON object; an unreadable value is
		// treated as absent rather than failing the read.
		_ = json.Unmarshal([]byte(locale.String), &p.NameLocale)
	}
	return &p, nil
}

// GetByID fetches a project by primary key.
func (r *ProjectRepo) GetByID(ctx context.Context, id uint64) (*model.Project, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id=? LIMIT 1", id)
	return scanProject(row.Scan)
}

// GetByClientID fetches a project by its public routing key.
func (r *ProjectRepo) GetByClientID(ctx context.Context, clientID string) (*model.Project, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE client_id=? LIMIT 1", clientID)
	return scanProject(row.Scan)
}

// Create inserts a project and fills its ID.
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	locale, err := marshalLocale(p.NameLocale)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO projects (name,client_id,client_secret,public,name_locale) VALUES (?,?,?,?,?)",
		p.Name, p.ClientID, p.ClientSecret, p.Public, locale)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// Update rewrites the mutable columns of a project row.
func (r *ProjectRepo) Update(ctx context.Context, p *model.Project) error {
	locale, err := marshalLocale(p.NameLocale)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE projects SET name=?,client_secret=?,public=?,name_locale=?,updated_at=? WHERE id=?",
		p.Name, p.ClientSecret, p.Public, locale, time.Now().UTC(), p.ID)
	return err
}

// ListPublic returns every project flagged public, secrets stripped.
func (r *ProjectRepo) ListPublic(ctx context.Context) ([]model.Project, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE public=1 ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Sanitized())
	}
	return out, rows.Err()
}

func marshalLocale(locale map[string]string) (any, error) {
	if len(locale) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(locale)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
