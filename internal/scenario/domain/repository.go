package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ListFilter struct {
	OrgID  snowflake.ID
	Name   string
	Cursor *Cursor
	Limit  int
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type Repository interface {
	Create(ctx context.Context, scenario *Scenario) error
	Get(ctx context.Context, orgID, id snowflake.ID) (*Scenario, error)
	List(ctx context.Context, filter ListFilter) ([]*Scenario, error)
	Update(ctx context.Context, orgID, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, orgID, id snowflake.ID) error
}
