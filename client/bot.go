package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	v1 "botadmin/pkg/api/v1"
	"botadmin/pkg/constraints"
)

const (
	botConfigPath = "bot/config/"
	stepsPath     = "bot/registration-steps/"
)

type BotService struct {
	c *Client
}

func (c *Client) Bot() *BotService {
	return &BotService{c: c}
}

func (s *BotService) Config(ctx context.Context) (*v1.BotConfig, error) {
	var cfg v1.BotConfig
	if err := s.c.Get(ctx, botConfigPath, nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *BotService) UpdateConfig(ctx context.Context, fields map[string]any) (*v1.BotConfig, error) {
	var cfg v1.BotConfig
	if err := s.c.Patch(ctx, botConfigPath, fields, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *BotService) UploadInvoiceImage(ctx context.Context, image File) (*v1.BotConfig, error) {
	var cfg v1.BotConfig
	form := NewForm().AddFile("invoice_image", image)
	if err := s.c.Upload(ctx, http.MethodPost, botConfigPath, form, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type RegistrationStepsService struct {
	c *Client
}

func (c *Client) RegistrationSteps() *RegistrationStepsService {
	return &RegistrationStepsService{c: c}
}

func (s *RegistrationStepsService) List(ctx context.Context) ([]v1.RegistrationStep, error) {
	return getList[v1.RegistrationStep](ctx, s.c, stepsPath, nil)
}

func (s *RegistrationStepsService) Get(ctx context.Context, id int64) (*v1.RegistrationStep, error) {
	var step v1.RegistrationStep
	if err := s.c.Get(ctx, itemPath(stepsPath, id), nil, &step); err != nil {
		return nil, err
	}
	return &step, nil
}

func (s *RegistrationStepsService) Create(ctx context.Context, step v1.RegistrationStep) (*v1.RegistrationStep, error) {
	if !constraints.ValidFieldType(step.FieldType) {
		return nil, fmt.Errorf("registration step: unknown field type %q", step.FieldType)
	}
	var out v1.RegistrationStep
	if err := s.c.Post(ctx, stepsPath, step, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RegistrationStepsService) Update(ctx context.Context, id int64, step v1.RegistrationStep) (*v1.RegistrationStep, error) {
	var out v1.RegistrationStep
	if err := s.c.Put(ctx, itemPath(stepsPath, id), step, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RegistrationStepsService) PartialUpdate(ctx context.Context, id int64, fields map[string]any) (*v1.RegistrationStep, error) {
	var out v1.RegistrationStep
	if err := s.c.Patch(ctx, itemPath(stepsPath, id), fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RegistrationStepsService) Delete(ctx context.Context, id int64) error {
	return s.c.Delete(ctx, itemPath(stepsPath, id))
}

var ErrInvalidReorder = errors.New("reorder: ids and orders must be non-empty and unique")

// Reorder assigns new positions; the server relinks next_step pointers.
// Duplicates are rejected locally with the same rule the server applies.
func (s *RegistrationStepsService) Reorder(ctx context.Context, items []v1.StepOrder) (*v1.ReorderResult, error) {
	if err := validateReorder(items); err != nil {
		return nil, err
	}
	var out v1.ReorderResult
	if err := s.c.Post(ctx, stepsPath+"reorder/", items, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func validateReorder(items []v1.StepOrder) error {
	if len(items) == 0 {
		return ErrInvalidReorder
	}
	ids := make(map[int64]struct{}, len(items))
	orders := make(map[int]struct{}, len(items))
	for _, item := range items {
		if _, dup := ids[item.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidReorder, item.ID)
		}
		if _, dup := orders[item.Order]; dup {
			return fmt.Errorf("%w: duplicate order %d", ErrInvalidReorder, item.Order)
		}
		ids[item.ID] = struct{}{}
		orders[item.Order] = struct{}{}
	}
	return nil
}

type AnalyticsService struct {
	c *Client
}

func (c *Client) Analytics() *AnalyticsService {
	return &AnalyticsService{c: c}
}

func (s *AnalyticsService) Users(ctx context.Context) (*v1.UsersStats, error) {
	var stats v1.UsersStats
	if err := s.c.Get(ctx, "analytics/users/", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
