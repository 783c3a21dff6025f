package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gagyekum/residency/internal/domain/model"
	"github.com/gagyekum/residency/internal/testutil"
)

func TestResidenceRepo_Create(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("creates residence with contact rows", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)

			req := testutil.NewResidenceRequest().
				WithHouseNumber("C-12").
				WithName("Boateng Residence").
				WithEmail("Boateng@Example.COM", "home", true).
				WithEmail("office@example.com", "work", false).
				WithPhone("+233 20 123 4567", "mobile", true).
				Build()

			res, err := repo.Create(context.Background(), req)
			require.NoError(t, err)
			assert.Positive(t, res.ID)
			assert.Equal(t, "C-12", res.HouseNumber)
			assert.Equal(t, "Boateng Residence", res.Name)
			assert.False(t, res.CreatedAt.IsZero())

			require.Len(t, res.EmailAddresses, 2)
			assert.Equal(t, "boateng@example.com", res.EmailAddresses[0].Email)
			assert.True(t, res.EmailAddresses[0].IsPrimary)
			assert.Equal(t, "work", res.EmailAddresses[1].Label)

			require.Len(t, res.PhoneNumbers, 1)
			assert.Equal(t, "+233 20 123 4567", res.PhoneNumbers[0].Number)
			assert.True(t, res.PhoneNumbers[0].IsPrimary)
		})
	})

	t.Run("rejects blank house number", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)

			req := testutil.NewResidenceRequest().WithHouseNumber("   ").Build()
			_, err := repo.Create(context.Background(), req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "house_number is required")
		})
	})

	t.Run("rejects email without a registrable domain", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)

			req := testutil.NewResidenceRequest().
				WithEmail("user@gmail", "home", true).
				Build()
			_, err := repo.Create(context.Background(), req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "registrable domain")
		})
	})

	t.Run("rejects two primary phone numbers", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)

			req := testutil.NewResidenceRequest().
				WithPhone("+233201111111", "mobile", true).
				WithPhone("+233202222222", "home", true).
				Build()
			_, err := repo.Create(context.Background(), req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "at most one phone number can be primary")
		})
	})

	t.Run("rejects nil request", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)

			_, err := repo.Create(context.Background(), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "request is required")
		})
	})
}

func TestResidenceRepo_GetByID(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("returns residence with contacts", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)
			ctx := context.Background()

			created, err := repo.Create(ctx, testutil.ResidenceWithContacts(
				"A-01", "Mensah Residence", "mensah@example.com", "+233201111111"))
			require.NoError(t, err)

			got, err := repo.GetByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, "Mensah Residence", got.Name)
			require.Len(t, got.EmailAddresses, 1)
			require.Len(t, got.PhoneNumbers, 1)
			assert.Equal(t, "+233201111111", got.PhoneNumbers[0].Number)
		})
	})

	t.Run("returns ErrResidenceNotFound for unknown id", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)

			_, err := repo.GetByID(context.Background(), 999999)
			assert.ErrorIs(t, err, ErrResidenceNotFound)
		})
	})
}

func TestResidenceRepo_List(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("orders by house number and attaches contacts", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)
			ctx := context.Background()

			// Created out of order on purpose
			for _, req := range []*model.CreateResidenceRequest{
				testutil.PhoneOnlyResidence("B-07", "Asante Residence", "+233203333333"),
				testutil.ResidenceWithContacts("A-01", "Mensah Residence", "mensah@example.com", "+233201111111"),
				testutil.EmailOnlyResidence("C-03", "Owusu Residence", "owusu@example.com"),
			} {
				_, err := repo.Create(ctx, req)
				require.NoError(t, err)
			}

			res, total, err := repo.List(ctx, model.ResidencesListOptions{})
			require.NoError(t, err)
			assert.Equal(t, 3, total)
			require.Len(t, res, 3)
			assert.Equal(t, "A-01", res[0].HouseNumber)
			assert.Equal(t, "B-07", res[1].HouseNumber)
			assert.Equal(t, "C-03", res[2].HouseNumber)

			// Contacts come back attached, empty slices when none exist.
			require.Len(t, res[0].PhoneNumbers, 1)
			assert.Empty(t, res[2].PhoneNumbers)
			require.Len(t, res[2].EmailAddresses, 1)
		})
	})

	t.Run("searches house number, name, and phone", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)
			ctx := context.Background()

			for _, req := range []*model.CreateResidenceRequest{
				testutil.ResidenceWithContacts("A-01", "Mensah Residence", "mensah@example.com", "+233201111111"),
				testutil.PhoneOnlyResidence("B-07", "Asante Residence", "+233207654321"),
				testutil.EmailOnlyResidence("C-03", "Owusu Residence", "owusu@example.com"),
			} {
				_, err := repo.Create(ctx, req)
				require.NoError(t, err)
			}

			byName, total, err := repo.List(ctx, model.ResidencesListOptions{Q: testutil.StringPtr("mensah")})
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			require.Len(t, byName, 1)
			assert.Equal(t, "A-01", byName[0].HouseNumber)

			byHouse, total, err := repo.List(ctx, model.ResidencesListOptions{Q: testutil.StringPtr("B-07")})
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			require.Len(t, byHouse, 1)
			assert.Equal(t, "Asante Residence", byHouse[0].Name)

			byPhone, total, err := repo.List(ctx, model.ResidencesListOptions{Q: testutil.StringPtr("7654")})
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			require.Len(t, byPhone, 1)
			assert.Equal(t, "B-07", byPhone[0].HouseNumber)

			// Blank search terms are ignored.
			all, total, err := repo.List(ctx, model.ResidencesListOptions{Q: testutil.StringPtr("   ")})
			require.NoError(t, err)
			assert.Equal(t, 3, total)
			assert.Len(t, all, 3)
		})
	})

	t.Run("applies limit and offset", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)
			ctx := context.Background()

			for i := 1; i <= 5; i++ {
				_, err := repo.Create(ctx, testutil.NumberedResidence(i))
				require.NoError(t, err)
			}

			res, total, err := repo.List(ctx, model.ResidencesListOptions{Limit: 2, Offset: 2})
			require.NoError(t, err)
			assert.Equal(t, 5, total)
			require.Len(t, res, 2)
			assert.Equal(t, "H3", res[0].HouseNumber)
			assert.Equal(t, "H4", res[1].HouseNumber)
		})
	})
}

func TestResidenceRepo_Update(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("updates name and keeps contacts", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)
			ctx := context.Background()

			created, err := repo.Create(ctx, testutil.ResidenceWithContacts(
				"A-01", "Mensah Residence", "mensah@example.com", "+233201111111"))
			require.NoError(t, err)

			updated, err := repo.Update(ctx, created.ID, model.UpdateResidenceRequest{
				Name: testutil.StringPtr("Mensah Family"),
			})
			require.NoError(t, err)
			assert.Equal(t, "Mensah Family", updated.Name)
			assert.Equal(t, "A-01", updated.HouseNumber)
			require.Len(t, updated.PhoneNumbers, 1)
			require.Len(t, updated.EmailAddresses, 1)
		})
	})

	t.Run("replaces phone numbers wholesale", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)
			ctx := context.Background()

			created, err := repo.Create(ctx, testutil.NewResidenceRequest().
				WithPhone("+233201111111", "mobile", true).
				WithPhone("+233202222222", "home", false).
				WithEmail("mensah@example.com", "home", true).
				Build())
			require.NoError(t, err)
			require.Len(t, created.PhoneNumbers, 2)

			newPhones := []model.PhoneNumberInput{
				{Number: "+233209999999", Label: "mobile", IsPrimary: true},
			}
			updated, err := repo.Update(ctx, created.ID, model.UpdateResidenceRequest{
				PhoneNumbers: &newPhones,
			})
			require.NoError(t, err)
			require.Len(t, updated.PhoneNumbers, 1)
			assert.Equal(t, "+233209999999", updated.PhoneNumbers[0].Number)

			// Emails were not part of the update and survive untouched.
			require.Len(t, updated.EmailAddresses, 1)
			assert.Equal(t, "mensah@example.com", updated.EmailAddresses[0].Email)
		})
	})

	t.Run("clears contacts with an empty list", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)
			ctx := context.Background()

			created, err := repo.Create(ctx, testutil.ResidenceWithContacts(
				"A-01", "Mensah Residence", "mensah@example.com", "+233201111111"))
			require.NoError(t, err)

			empty := []model.PhoneNumberInput{}
			updated, err := repo.Update(ctx, created.ID, model.UpdateResidenceRequest{
				PhoneNumbers: &empty,
			})
			require.NoError(t, err)
			assert.Empty(t, updated.PhoneNumbers)
			require.Len(t, updated.EmailAddresses, 1)
		})
	})

	t.Run("rejects an empty update", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)
			ctx := context.Background()

			created, err := repo.Create(ctx, testutil.NewResidenceRequest().Build())
			require.NoError(t, err)

			_, err = repo.Update(ctx, created.ID, model.UpdateResidenceRequest{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "at least one field must be updated")
		})
	})

	t.Run("returns ErrResidenceNotFound for unknown id", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)

			_, err := repo.Update(context.Background(), 999999, model.UpdateResidenceRequest{
				Name: testutil.StringPtr("Nobody"),
			})
			assert.ErrorIs(t, err, ErrResidenceNotFound)
		})
	})
}

func TestResidenceRepo_Delete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("deletes residence and cascades contacts", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)
			ctx := context.Background()

			created, err := repo.Create(ctx, testutil.ResidenceWithContacts(
				"A-01", "Mensah Residence", "mensah@example.com", "+233201111111"))
			require.NoError(t, err)

			deleted, err := repo.Delete(ctx, created.ID)
			require.NoError(t, err)
			assert.True(t, deleted)

			_, err = repo.GetByID(ctx, created.ID)
			assert.ErrorIs(t, err, ErrResidenceNotFound)

			var phones int
			err = db.QueryRowContext(ctx, `
				SELECT count(*) FROM residence_phone_numbers WHERE residence_id = $1
			`, created.ID).Scan(&phones)
			require.NoError(t, err)
			assert.Equal(t, 0, phones)
		})
	})

	t.Run("returns false for unknown id", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)

			deleted, err := repo.Delete(context.Background(), 999999)
			require.NoError(t, err)
			assert.False(t, deleted)
		})
	})
}

func TestResidenceRepo_ListChannelTargets(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("returns one target per address", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)
			ctx := context.Background()

			multi, err := repo.Create(ctx, testutil.NewResidenceRequest().
				WithHouseNumber("A-01").
				WithName("Mensah Residence").
				WithEmail("mensah@example.com", "home", true).
				WithEmail("kwame@example.com", "work", false).
				WithPhone("+233201111111", "mobile", true).
				Build())
			require.NoError(t, err)

			_, err = repo.Create(ctx, testutil.PhoneOnlyResidence(
				"B-07", "Asante Residence", "+233203333333"))
			require.NoError(t, err)

			emails, err := repo.ListChannelTargets(ctx, model.ChannelEmail)
			require.NoError(t, err)
			require.Len(t, emails, 2)
			assert.Equal(t, multi.ID, emails[0].ResidenceID)
			assert.Equal(t, "mensah@example.com", emails[0].Address)
			assert.Equal(t, "kwame@example.com", emails[1].Address)
			assert.Equal(t, "Mensah Residence", emails[0].ResidenceName)
			assert.Equal(t, "A-01", emails[0].HouseNumber)

			phones, err := repo.ListChannelTargets(ctx, model.ChannelSMS)
			require.NoError(t, err)
			require.Len(t, phones, 2)
			assert.Equal(t, "+233201111111", phones[0].Address)
			assert.Equal(t, "+233203333333", phones[1].Address)
		})
	})

	t.Run("returns nothing for an empty directory", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)

			targets, err := repo.ListChannelTargets(context.Background(), model.ChannelEmail)
			require.NoError(t, err)
			assert.Empty(t, targets)
		})
	})

	t.Run("rejects an unknown channel", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewResidenceRepo(db)

			_, err := repo.ListChannelTargets(context.Background(), model.Channel("fax"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid channel")
		})
	})
}
