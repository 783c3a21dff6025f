// Package mocks holds gomock-generated doubles for the core repository and
// dispatch interfaces. Regenerate after an interface change with:
//
//	go generate ./internal/mocks
//
// Tests construct them through a controller; Finish runs automatically via
// the controller's test cleanup:
//
//	repo := mocks.NewMockMessageJobRepository(gomock.NewController(t))
//	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=message_job_repository_mock.go github.com/gagyekum/residency/internal/core MessageJobRepository
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=recipient_repository_mock.go github.com/gagyekum/residency/internal/core RecipientRepository
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=residence_repository_mock.go github.com/gagyekum/residency/internal/core ResidenceRepository
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=janitor_repository_mock.go github.com/gagyekum/residency/internal/core JanitorRepository
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=dispatch_launcher_mock.go github.com/gagyekum/residency/internal/core DispatchLauncher
