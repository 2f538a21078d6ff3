package main

import (
	bookingsrepo "courtbook/internal/bookings/repository"
	"courtbook/internal/courts/handler"
	"courtbook/internal/courts/repository"
	"courtbook/internal/courts/service"
	"courtbook/internal/courts/validator"
	"courtbook/pkg/app"
	"courtbook/pkg/config"
	"courtbook/pkg/contracts"
)

const ServiceName = "courts"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.Log.Info("Starting Courts service")

	courtService := initServices(cfg)
	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, []contracts.Handler{handler.NewCourtHandler(courtService, cfg.Log)})
	serverApp.Run()
}

func initServices(cfg *config.Config) service.CourtService {
	courtService := service.NewCourtService(
		repository.NewMongoCourtRepository(cfg),
		bookingsrepo.NewMongoBookingRepository(cfg),
		validator.NewCourtValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Court service initialized", "database", cfg.MongoDatabaseName)
	return courtService
}
