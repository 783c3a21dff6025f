// Package devseed fills an empty development database with a small residence
// directory so the messaging workflow has someone to deliver to.
package devseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagyekum/residency/internal/data"
	"github.com/gagyekum/residency/internal/domain/model"
	"github.com/gagyekum/residency/internal/service"
)

// Run inserts the sample residences, skipping house numbers already in the
// directory so reseeding stays idempotent. Individual failures are logged and
// collected; the rest of the batch still runs.
func Run(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	svc := service.NewResidenceService(service.ResidenceServiceOptions{
		Repo: data.NewResidenceRepo(db),
	})

	var errs []error
	for _, seed := range sampleResidences {
		created, err := ensureResidence(ctx, svc, seed)
		if err != nil {
			logger.ErrorContext(ctx, "seed residence failed",
				"house_number", seed.HouseNumber, "error", err)
			errs = append(errs, fmt.Errorf("residence %s: %w", seed.HouseNumber, err))
			continue
		}
		if created {
			logger.InfoContext(ctx, "seeded residence",
				"house_number", seed.HouseNumber, "name", seed.Name)
		} else {
			logger.DebugContext(ctx, "residence already present",
				"house_number", seed.HouseNumber)
		}
	}
	return errors.Join(errs...)
}

// ensureResidence creates the residence unless its house number is already in
// the directory. House numbers carry no unique constraint, so this lookup is
// what keeps a rerun from duplicating rows.
func ensureResidence(
	ctx context.Context,
	svc *service.ResidenceService,
	seed *model.CreateResidenceRequest,
) (bool, error) {
	q := seed.HouseNumber
	existing, _, err := svc.List(ctx, model.ResidencesListOptions{Limit: 50, Q: &q})
	if err != nil {
		return false, fmt.Errorf("list residences: %w", err)
	}
	for _, r := range existing {
		if r.HouseNumber == seed.HouseNumber {
			return false, nil
		}
	}
	if _, err := svc.Create(ctx, seed); err != nil {
		return false, err
	}
	return true, nil
}

var sampleResidences = []*model.CreateResidenceRequest{
	{
		HouseNumber: "A-01",
		Name:        "Mensah Residence",
		PhoneNumbers: []model.PhoneNumberInput{
			{Number: "+233 24 400 0101", Label: "mobile", IsPrimary: true},
			{Number: "+233 30 277 0101", Label: "home"},
		},
		EmailAddresses: []model.EmailAddressInput{
			{Email: "mensah.family@example.com", Label: "home", IsPrimary: true},
		},
	},
	{
		HouseNumber: "A-02",
		Name:        "Owusu Residence",
		PhoneNumbers: []model.PhoneNumberInput{
			{Number: "+233 20 400 0202", Label: "mobile", IsPrimary: true},
		},
		EmailAddresses: []model.EmailAddressInput{
			{Email: "owusu.house@example.com", IsPrimary: true},
			{Email: "kwame.owusu@example.org", Label: "work"},
		},
	},
	{
		HouseNumber: "B-07",
		Name:        "Asante Residence",
		PhoneNumbers: []model.PhoneNumberInput{
			{Number: "+233 27 400 0707", Label: "mobile", IsPrimary: true},
		},
	},
	{
		HouseNumber: "B-12",
		Name:        "Boateng Residence",
		EmailAddresses: []model.EmailAddressInput{
			{Email: "boateng12@example.com", IsPrimary: true},
		},
	},
	{
		HouseNumber: "C-03",
		Name:        "Annan Residence",
		PhoneNumbers: []model.PhoneNumberInput{
			{Number: "+233 55 400 0303", Label: "mobile", IsPrimary: true},
			{Number: "+233 24 400 0304", Label: "spouse"},
		},
		EmailAddresses: []model.EmailAddressInput{
			{Email: "annan.home@example.com", IsPrimary: true},
		},
	},
}
