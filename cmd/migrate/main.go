package main

import (
	"context"
	"time"

	bookingsrepo "resourcebooking/internal/bookings/repository"
	bookingsservice "resourcebooking/internal/bookings/service"
	mongoMigration "resourcebooking/internal/migrations/mongo"
	postgresMigration "resourcebooking/internal/migrations/postgres"
	resourcesrepo "resourcebooking/internal/resources/repository"
	resourcesservice "resourcebooking/internal/resources/service"
	resourcesvalidator "resourcebooking/internal/resources/validator"
	"resourcebooking/pkg/config"
)

const (
	JobName    = "resource-booking-migration"
	jobTimeout = 120 * time.Second
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.Connect()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting migration job", "storage", cfg.StorageDriver)
	if err := migrate(ctx, cfg); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}

	if cfg.SeedOnStartup {
		seed(ctx, cfg)
	}
	cfg.Log.Info("Migration completed successfully")
}

func migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.StorageDriver == config.StoragePostgres {
		return postgresMigration.RunMigration(ctx, cfg.Client.Postgres, cfg.Log)
	}
	return mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log)
}

func seed(ctx context.Context, cfg *config.Config) {
	var (
		resources resourcesrepo.ResourceRepository
		bookings  bookingsrepo.BookingRepository
		locks     bookingsrepo.BookingLockRepository
	)
	if cfg.StorageDriver == config.StoragePostgres {
		resources = resourcesrepo.NewPostgresResourceRepository(cfg.Client.Postgres, cfg.ReadTimeout, cfg.WriteTimeout)
		bookings = bookingsrepo.NewPostgresBookingRepository(cfg.Client.Postgres, cfg.ReadTimeout, cfg.WriteTimeout)
		locks = bookingsrepo.NewPostgresBookingLockRepository(cfg.Client.Postgres, cfg.WriteTimeout)
	} else {
		resources = resourcesrepo.NewMongoResourceRepository(cfg)
		bookings = bookingsrepo.NewMongoBookingRepository(cfg)
		locks = bookingsrepo.NewMongoBookingLockRepository(cfg)
	}

	svc := resourcesservice.NewResourceService(
		resources,
		bookings,
		bookingsservice.NewResourceLocker(locks, cfg.BookingLockTTL, cfg.Log),
		resourcesvalidator.NewResourceValidator(cfg.Log),
		cfg,
	)
	inserted, err := svc.SeedDefaults(ctx)
	if err != nil {
		cfg.Log.Error("Failed to seed default resources", "error", err)
		return
	}
	cfg.Log.Info("Seeding finished", "inserted", inserted)
}
