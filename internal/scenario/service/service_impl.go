package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/promptlab/internal/clock"
	"github.com/smallbiznis/promptlab/internal/scenario/domain"
	"github.com/smallbiznis/promptlab/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	maxNameLength   = 200
	maxPromptLength = 64 * 1024
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Repo  domain.Repository
	GenID *snowflake.Node
	Clock clock.Clock
}

type service struct {
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &service{
		log:   p.Log.Named("scenario.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *service) Create(ctx context.Context, orgID, userID snowflake.ID, req domain.CreateScenarioRequest) (*domain.Scenario, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	prompt, err := validatePrompt(req.Prompt)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	scenario := &domain.Scenario{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		Name:           name,
		Description:    strings.TrimSpace(req.Description),
		Prompt:         prompt,
		Variables:      variables(req.Variables),
		ExpectedOutput: req.ExpectedOutput,
		CreatedBy:      userID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, scenario); err != nil {
		return nil, err
	}
	return scenario, nil
}

func (s *service) Get(ctx context.Context, orgID, id snowflake.ID) (*domain.Scenario, error) {
	return s.repo.Get(ctx, orgID, id)
}

func (s *service) List(ctx context.Context, orgID snowflake.ID, req domain.ListScenarioRequest) (domain.ListScenarioResponse, error) {
	var cursor *domain.Cursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListScenarioResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return domain.ListScenarioResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(decoded.ID)
		if err != nil {
			return domain.ListScenarioResponse{}, domain.ErrInvalidPageToken
		}
		cursor = &domain.Cursor{ID: id, CreatedAt: createdAt}
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, domain.ListFilter{
		OrgID:  orgID,
		Name:   req.Name,
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		return domain.ListScenarioResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, limit, func(item *domain.Scenario) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > limit {
		items = items[:limit]
	}

	scenarios := make([]domain.Scenario, 0, len(items))
	for _, item := range items {
		scenarios = append(scenarios, *item)
	}
	return domain.ListScenarioResponse{PageInfo: *pageInfo, Scenarios: scenarios}, nil
}

func (s *service) Update(ctx context.Context, orgID, id snowflake.ID, req domain.UpdateScenarioRequest) (*domain.Scenario, error) {
	fields := map[string]any{}
	if req.Name != nil {
		name, err := validateName(*req.Name)
		if err != nil {
			return nil, err
		}
		fields["name"] = name
	}
	if req.Prompt != nil {
		prompt, err := validatePrompt(*req.Prompt)
		if err != nil {
			return nil, err
		}
		fields["prompt"] = prompt
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Variables != nil {
		fields["variables"] = variables(req.Variables)
	}
	if req.ExpectedOutput != nil {
		fields["expected_output"] = *req.ExpectedOutput
	}

	if len(fields) > 0 {
		fields["updated_at"] = s.clock.Now()
		if err := s.repo.Update(ctx, orgID, id, fields); err != nil {
			return nil, err
		}
	}
	return s.repo.Get(ctx, orgID, id)
}

func (s *service) Delete(ctx context.Context, orgID, id snowflake.ID) error {
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		return err
	}
	s.log.Info("scenario deleted", zap.String("org_id", orgID.String()), zap.String("scenario_id", id.String()))
	return nil
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", domain.ErrInvalidName
	}
	return name, nil
}

func validatePrompt(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" || len(raw) > maxPromptLength {
		return "", domain.ErrInvalidPrompt
	}
	return raw, nil
}

func variables(in map[string]any) datatypes.JSONMap {
	if in == nil {
		return datatypes.JSONMap{}
	}
	return datatypes.JSONMap(in)
}
