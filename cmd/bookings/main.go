package main

import (
	"context"

	bookingsevents "resourcebooking/internal/bookings/events"
	bookingshandler "resourcebooking/internal/bookings/handler"
	bookingsrepo "resourcebooking/internal/bookings/repository"
	bookingsservice "resourcebooking/internal/bookings/service"
	bookingsvalidator "resourcebooking/internal/bookings/validator"
	resourceshandler "resourcebooking/internal/resources/handler"
	resourcesrepo "resourcebooking/internal/resources/repository"
	resourcesservice "resourcebooking/internal/resources/service"
	resourcesvalidator "resourcebooking/internal/resources/validator"
	"resourcebooking/pkg/app"
	"resourcebooking/pkg/config"
	"resourcebooking/pkg/kafka"
	kafka_config "resourcebooking/pkg/kafka/config"
	kafka_middleware "resourcebooking/pkg/kafka/middleware"
)

const ServiceName = "resource-booking"

type repositories struct {
	resources resourcesrepo.ResourceRepository
	bookings  bookingsrepo.BookingRepository
	locks     bookingsrepo.BookingLockRepository
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.Connect()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting resource booking service", "storage", cfg.StorageDriver)

	serverApp := app.NewApplication(cfg)
	publisher := initPublisher(cfg, serverApp)
	resourceService, bookingService := initServices(cfg, newRepositories(cfg), publisher)

	if cfg.SeedOnStartup {
		seedResources(cfg, resourceService)
	}

	serverApp.SetApp(
		resourceshandler.NewHealthHandler(cfg.Client, cfg.Log),
		resourceshandler.NewResourceHandler(resourceService, cfg.Log),
		bookingshandler.NewBookingHandler(bookingService, cfg.Log),
	)
	serverApp.Run()
}

func newRepositories(cfg *config.Config) repositories {
	if cfg.StorageDriver == config.StoragePostgres {
		conn := cfg.Client.Postgres
		return repositories{
			resources: resourcesrepo.NewPostgresResourceRepository(conn, cfg.ReadTimeout, cfg.WriteTimeout),
			bookings:  bookingsrepo.NewPostgresBookingRepository(conn, cfg.ReadTimeout, cfg.WriteTimeout),
			locks:     bookingsrepo.NewPostgresBookingLockRepository(conn, cfg.WriteTimeout),
		}
	}
	return repositories{
		resources: resourcesrepo.NewMongoResourceRepository(cfg),
		bookings:  bookingsrepo.NewMongoBookingRepository(cfg),
		locks:     bookingsrepo.NewMongoBookingLockRepository(cfg),
	}
}

func initServices(cfg *config.Config, repos repositories, publisher bookingsevents.Publisher) (resourcesservice.ResourceService, bookingsservice.BookingService) {
	locker := bookingsservice.NewResourceLocker(repos.locks, cfg.BookingLockTTL, cfg.Log)

	resourceService := resourcesservice.NewResourceService(
		repos.resources,
		repos.bookings,
		locker,
		resourcesvalidator.NewResourceValidator(cfg.Log),
		cfg,
	)
	bookingService := bookingsservice.NewBookingService(
		repos.bookings,
		repos.resources,
		locker,
		bookingsvalidator.NewBookingValidator(cfg.Log),
		publisher,
		cfg,
	)

	cfg.Log.Info("Services initialized", "storage", cfg.StorageDriver)
	return resourceService, bookingService
}

// initPublisher falls back to a no-op publisher when Kafka is disabled or
// cannot be configured; events are never required for a booking to succeed.
func initPublisher(cfg *config.Config, serverApp *app.Application) bookingsevents.Publisher {
	if !cfg.KafkaEnabled {
		return bookingsevents.NewNoopPublisher()
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Error("Invalid Kafka configuration, booking events disabled", "error", err)
		return bookingsevents.NewNoopPublisher()
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaBookingsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Error("Failed to create Kafka producer, booking events disabled", "error", err)
		return bookingsevents.NewNoopPublisher()
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}

	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})
	return bookingsevents.NewKafkaPublisher(producer, ServiceName, cfg.Log)
}

func seedResources(cfg *config.Config, resourceService resourcesservice.ResourceService) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
	defer cancel()

	if _, err := resourceService.SeedDefaults(ctx); err != nil {
		cfg.Log.Error("Failed to seed default resources", "error", err)
	}
}
