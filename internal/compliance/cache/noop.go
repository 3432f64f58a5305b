package cache

import (
	"context"

	"amlstat/internal/compliance/models"
	id "amlstat/pkg/domain"
)

// Noop never stores anything. It is used when Redis is not configured.
type Noop struct{}

func (Noop) Generation(context.Context) (int64, error) { return 0, nil }

func (Noop) GetOrganization(context.Context, id.OrganizationID, int) (*models.OrganizationCompliance, bool, error) {
	return nil, false, nil
}

func (Noop) SetOrganization(context.Context, *models.OrganizationCompliance, int64) error { return nil }

func (Noop) GetOverview(context.Context, int) (*models.Overview, bool, error) {
	return nil, false, nil
}

func (Noop) SetOverview(context.Context, *models.Overview, int64) error { return nil }

func (Noop) Invalidate(context.Context, id.OrganizationID, int) error { return nil }

func (Noop) InvalidateOrganization(context.Context, id.OrganizationID) error { return nil }
