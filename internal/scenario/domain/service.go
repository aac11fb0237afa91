package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/promptlab/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, orgID, userID snowflake.ID, req CreateScenarioRequest) (*Scenario, error)
	Get(ctx context.Context, orgID, id snowflake.ID) (*Scenario, error)
	List(ctx context.Context, orgID snowflake.ID, req ListScenarioRequest) (ListScenarioResponse, error)
	Update(ctx context.Context, orgID, id snowflake.ID, req UpdateScenarioRequest) (*Scenario, error)
	Delete(ctx context.Context, orgID, id snowflake.ID) error
}

type CreateScenarioRequest struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Prompt         string         `json:"prompt"`
	Variables      map[string]any `json:"variables"`
	ExpectedOutput string         `json:"expected_output"`
}

// UpdateScenarioRequest applies only the non-nil fields.
type UpdateScenarioRequest struct {
	Name           *string        `json:"name"`
	Description    *string        `json:"description"`
	Prompt         *string        `json:"prompt"`
	Variables      map[string]any `json:"variables"`
	ExpectedOutput *string        `json:"expected_output"`
}

// TouchesPrompt reports whether the update changes prompt content.
func (r UpdateScenarioRequest) TouchesPrompt() bool {
	return r.Prompt != nil || r.Variables != nil
}

type ListScenarioRequest struct {
	pagination.Pagination
	Name string `form:"name"`
}

type ListScenarioResponse struct {
	pagination.PageInfo
	Scenarios []Scenario `json:"scenarios"`
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidPrompt    = errors.New("invalid_prompt")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrNotFound         = errors.New("scenario_not_found")
)
