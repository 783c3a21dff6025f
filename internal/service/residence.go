package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/domain/model"
)

const residenceSearchPageSize = 10

// ResidenceServiceOptions groups dependencies for ResidenceService.
type ResidenceServiceOptions struct {
	Repo core.ResidenceRepository
}

// ResidenceService orchestrates residence directory CRUD and search.
// Validation and error taxonomy live in the repository; this layer shapes
// paging and the search envelope.
type ResidenceService struct {
	repo core.ResidenceRepository
}

// NewResidenceService constructs a new ResidenceService.
func NewResidenceService(opts ResidenceServiceOptions) *ResidenceService {
	return &ResidenceService{repo: opts.Repo}
}

// Create creates a residence with its contact rows.
func (s *ResidenceService) Create(
	ctx context.Context,
	req *model.CreateResidenceRequest,
) (*model.Residence, error) {
	return s.repo.Create(ctx, req)
}

// GetByID retrieves a residence by ID.
func (s *ResidenceService) GetByID(ctx context.Context, id int64) (*model.Residence, error) {
	return s.repo.GetByID(ctx, id)
}

// Update updates a residence. Contact lists replace wholesale when present.
func (s *ResidenceService) Update(
	ctx context.Context,
	id int64,
	req model.UpdateResidenceRequest,
) (*model.Residence, error) {
	return s.repo.Update(ctx, id, req)
}

// Delete deletes a residence and, via cascade, its contact rows.
func (s *ResidenceService) Delete(ctx context.Context, id int64) (bool, error) {
	return s.repo.Delete(ctx, id)
}

// List returns a page of residences plus the total count.
func (s *ResidenceService) List(
	ctx context.Context,
	opts model.ResidencesListOptions,
) ([]*model.Residence, int, error) {
	opts = normalizeResidenceListOptions(opts)
	return s.repo.List(ctx, opts)
}

// SearchParams are the residence search inputs. An empty term matches every
// residence; Page starts at 1.
type SearchParams struct {
	Search string
	Page   int
}

// Search returns one fixed-size page of residences matching the term against
// house number, name, or any phone number. Next and Previous carry "page=N"
// tokens when the neighboring page exists.
func (s *ResidenceService) Search(
	ctx context.Context,
	params SearchParams,
) (*model.ResidenceSearchPage, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}

	opts := model.ResidencesListOptions{
		Limit:  residenceSearchPageSize,
		Offset: (page - 1) * residenceSearchPageSize,
	}
	if term := strings.TrimSpace(params.Search); term != "" {
		opts.Q = &term
	}

	residences, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("search residences: %w", err)
	}

	results := make([]model.Residence, 0, len(residences))
	for _, r := range residences {
		results = append(results, *r)
	}

	out := &model.ResidenceSearchPage{
		Count:   total,
		Results: results,
	}
	if opts.Offset+residenceSearchPageSize < total {
		next := fmt.Sprintf("page=%d", page+1)
		out.Next = &next
	}
	if page > 1 {
		previous := fmt.Sprintf("page=%d", page-1)
		out.Previous = &previous
	}
	return out, nil
}

func normalizeResidenceListOptions(opts model.ResidencesListOptions) model.ResidencesListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Q != nil && strings.TrimSpace(*opts.Q) == "" {
		opts.Q = nil
	}
	return opts
}
