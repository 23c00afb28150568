// Package archive persists finished profiles to Postgres. Live job state
// never lives here; the in-memory job store owns that, and the archive only
// receives completed results.
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/prospecthq/prospector/pkg/models"
)

var ErrNotFound = errors.New("profile not found")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	SaveProfile(ctx context.Context, p *models.ArchivedProfile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*models.ArchivedProfile, error)
	ListProfiles(ctx context.Context, filter ProfileFilter) ([]*models.ArchivedProfile, int, error)
}

// ProfileFilter narrows and pages a profile listing.
type ProfileFilter struct {
	SubjectName string
	Since       time.Time
	Page        int
	Limit       int
}
