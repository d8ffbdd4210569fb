package main

import (
	"context"
	"time"

	availabilityhandler "coworking/internal/availability/handler"
	availabilityservice "coworking/internal/availability/service"
	"coworking/internal/bookings/consumer"
	"coworking/internal/bookings/events"
	bookinghandler "coworking/internal/bookings/handler"
	"coworking/internal/bookings/ordersystem"
	bookingsrepo "coworking/internal/bookings/repository"
	bookingservice "coworking/internal/bookings/service"
	"coworking/internal/bookings/validator"
	"coworking/internal/calendar"
	"coworking/internal/capacity"
	inventoryrepo "coworking/internal/inventory/repository"
	"coworking/internal/locks"
	"coworking/internal/maintenance"
	"coworking/pkg/app"
	"coworking/pkg/clock"
	"coworking/pkg/config"
	"coworking/pkg/contracts"
	"coworking/pkg/kafka"
	kafka_config "coworking/pkg/kafka/config"
	kafkamiddleware "coworking/pkg/kafka/middleware"
)

const (
	ServiceName = "coworking"

	maintenanceTimeout = 10 * time.Minute
)

type services struct {
	booking      bookingservice.BookingService
	availability availabilityservice.AvailabilityService
	sweeper      *maintenance.Sweeper
	producer     *kafka.Producer
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	if cfg.LockStore == config.LockStoreRedis {
		cfg.SetRedis()
	}

	cfg.Log.Info("Starting Coworking service")

	var kafkaCfg *kafka_config.Config
	if cfg.KafkaEnabled {
		var err error
		kafkaCfg, err = kafka_config.Load()
		if err != nil {
			cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
		}
		kafkaCfg.LogConfiguration(cfg.Log)
	}

	svc := initServices(cfg, kafkaCfg)

	pingers := cfg.Client.Pingers()
	deps := make([]contracts.Pinger, 0, len(pingers))
	for _, p := range pingers {
		deps = append(deps, p)
	}

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		bookinghandler.NewHealthHandler(cfg.Log, deps...),
		availabilityhandler.NewAvailabilityHandler(svc.availability, cfg.Log),
		bookinghandler.NewBookingHandler(svc.booking, svc.sweeper, cfg.Log),
	)

	scheduler := maintenance.NewScheduler(svc.sweeper, cfg.MaintenanceSchedule, cfg.Location, maintenanceTimeout, cfg.Log)
	if err := scheduler.Start(); err != nil {
		cfg.Log.Fatal("Failed to start maintenance scheduler", "error", err)
	}
	serverApp.OnShutdown(scheduler.Stop)

	if kafkaCfg != nil {
		initConsumer(cfg, kafkaCfg, svc.booking, serverApp)
	}
	if svc.producer != nil {
		serverApp.OnShutdown(func(context.Context) {
			if err := svc.producer.Close(); err != nil {
				cfg.Log.Error("Failed to close Kafka producer", "error", err)
			}
		})
	}

	serverApp.Run()
}

func initServices(cfg *config.Config, kafkaCfg *kafka_config.Config) *services {
	clk := clock.NewSystem()
	cal := calendar.New(clk, cfg.Location)
	requestValidator := validator.NewBookingValidator(cfg.Log)

	resources := inventoryrepo.NewMongoResourceRepository(cfg)
	reservations := inventoryrepo.NewMongoReservationRepository(cfg)
	drafts := bookingsrepo.NewMongoDraftRepository(cfg)
	orders := bookingsrepo.NewMongoOrderRepository(cfg)

	lockManager := locks.NewManager(newLockStore(cfg, clk), resources, locks.Config{
		Policy:          locks.PolicyFromConfig(cfg),
		DefaultCapacity: cfg.DefaultCapacity,
	}, clk, cfg.Log)

	availability := availabilityservice.NewAvailabilityService(
		resources,
		reservations,
		lockManager,
		requestValidator,
		cal,
		availabilityservice.Config{
			DefaultCapacity: cfg.DefaultCapacity,
			Capacity:        capacity.Policy{LowThreshold: cfg.LowSlotsThreshold},
			MinLeadDays:     cfg.MinLeadDays,
		},
		cfg.Log,
	)

	orderSystem := ordersystem.NewClient(ordersystem.Config{
		BaseURL:     cfg.OrderSystemURL,
		Timeout:     cfg.OrderSystemTimeout,
		MaxFailures: uint32(max(cfg.OrderSystemMaxFailures, 1)),
		OpenTimeout: cfg.OrderSystemOpenTimeout,
	}, cfg.Log)

	svc := &services{availability: availability}
	publisher := events.NewLogPublisher(cfg.Log)
	if kafkaCfg != nil {
		producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
		}
		if kafkaCfg.EnableMiddleware {
			producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
		}
		svc.producer = producer
		publisher = events.NewKafkaPublisher(producer)
	}

	svc.booking = bookingservice.NewBookingService(
		availability,
		lockManager,
		reservations,
		drafts,
		orders,
		orderSystem,
		publisher,
		requestValidator,
		bookingservice.Config{
			ProductMapping:       cfg.ProductMapping,
			RecordAnonymousSpans: cfg.RecordAnonymousSpans,
		},
		cfg.Log,
	)

	svc.sweeper = maintenance.NewSweeper(lockManager, drafts, reservations, maintenance.Config{
		DraftGraceWindow: cfg.DraftGraceWindow,
	}, clk, cfg.Log)

	cfg.Log.Info("Coworking services initialized",
		"database", cfg.MongoDatabaseName,
		"lock_store", cfg.LockStore,
		"kafka_enabled", kafkaCfg != nil,
	)
	return svc
}

func newLockStore(cfg *config.Config, clk clock.Clock) locks.Store {
	if cfg.LockStore == config.LockStoreRedis {
		return locks.NewRedisStore(cfg.Client.Redis, cfg.LockUpdateMaxRetries, cfg.Log)
	}
	cfg.Log.Warn("Using in-process lock store, locks are not shared between instances")
	return locks.NewMemoryStore(clk)
}

func initConsumer(cfg *config.Config, kafkaCfg *kafka_config.Config, booking bookingservice.BookingService, serverApp *app.Application) {
	orderEvents := consumer.NewOrderEventConsumer(booking, cfg.Log)
	c, err := kafka.NewConsumer(kafkaCfg, cfg.OrderEventsTopic, cfg.KafkaConsumerGroup, orderEvents.Handle, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		c.Use(kafkamiddleware.LoggingConsumerMiddleware(cfg.Log))
	}

	serverApp.AddWorker("order-events-consumer", c.Start)
	serverApp.OnShutdown(func(context.Context) {
		if err := c.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
	})
}
