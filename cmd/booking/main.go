package main

import (
	"github.com/julienschmidt/httprouter"

	appointmenthandler "mediq/internal/appointments/handler"
	appointmentrepo "mediq/internal/appointments/repository"
	appointmentservice "mediq/internal/appointments/service"
	bookinghandler "mediq/internal/booking/handler"
	bookingservice "mediq/internal/booking/service"
	doctorrepo "mediq/internal/doctors/repository"
	"mediq/internal/events"
	healthhandler "mediq/internal/health/handler"
	ledgerhandler "mediq/internal/ledger/handler"
	ledgerrepo "mediq/internal/ledger/repository"
	ledgerservice "mediq/internal/ledger/service"
	payouthandler "mediq/internal/payouts/handler"
	payoutservice "mediq/internal/payouts/service"
	slothandler "mediq/internal/slots/handler"
	slotrepo "mediq/internal/slots/repository"
	slotservice "mediq/internal/slots/service"
	slotvalidator "mediq/internal/slots/validator"
	"mediq/pkg/app"
	"mediq/pkg/config"
	"mediq/pkg/contracts"
	"mediq/pkg/kafka"
	kafka_config "mediq/pkg/kafka/config"
	kafkamiddleware "mediq/pkg/kafka/middleware"
	"mediq/pkg/sealer"
)

const ServiceName = "booking"

// apiHandler fans RegisterRoutes out to every domain handler so the
// application server sees a single handler, one router.
type apiHandler struct {
	handlers []contracts.Handler
}

func (h *apiHandler) RegisterRoutes(router *httprouter.Router) {
	for _, handler := range h.handlers {
		handler.RegisterRoutes(router)
	}
}

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.Log.Info("Starting Booking service")
	cfg.SetMongo()

	slotSealer, err := sealer.New(cfg.SlotTokenKey)
	if err != nil {
		cfg.Log.Fatal("Invalid slot token key", "error", err)
	}

	publisher := initPublisher(cfg)

	api := initHandlers(cfg, slotSealer, publisher)
	health := healthhandler.NewHealthHandler(cfg.Client.Mongo, ServiceName, cfg.Log)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(api, health)
	serverApp.Run()
}

func initPublisher(cfg *config.Config) events.Publisher {
	producer, err := kafka.NewProducer(
		kafka_config.Load(),
		cfg.AppointmentEventsTopic,
		cfg.AppointmentEventsTopic+".dlq",
	)
	if err != nil {
		cfg.Log.Error("Kafka producer unavailable, events will be dropped", "error", err)
		return events.NopPublisher{}
	}
	producer.Use(kafkamiddleware.LoggingProducerMiddleware())
	producer.Use(kafkamiddleware.MetricsProducerMiddleware())
	return events.NewKafkaPublisher(producer, cfg.Log)
}

func initHandlers(cfg *config.Config, slotSealer *sealer.Sealer, publisher events.Publisher) contracts.Handler {
	doctors := doctorrepo.NewMongoDoctorRepository(cfg)

	slots := slotservice.NewSlotService(
		slotrepo.NewMongoSlotRepository(cfg),
		slotrepo.NewSlotLockRepository(cfg),
		doctors,
		slotvalidator.NewSlotValidator(cfg.Log),
		cfg,
	)

	appointments := appointmentservice.NewAppointmentService(
		appointmentrepo.NewMongoAppointmentRepository(cfg),
		slots,
		publisher,
		cfg,
	)

	ledgerRepo := ledgerrepo.NewMongoTransactionRepository(cfg)
	ledger := ledgerservice.NewLedgerService(
		ledgerRepo,
		ledgerservice.NewApproveAllGateway(),
		ledgerservice.PercentFee(cfg.PlatformFeePercent),
		cfg,
	)

	booking := bookingservice.NewBookingService(slots, appointments, ledger, doctors, publisher, cfg)
	payouts := payoutservice.NewPayoutService(ledgerRepo, doctors, cfg)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)

	return &apiHandler{handlers: []contracts.Handler{
		slothandler.NewSlotHandler(slots, slotSealer, cfg.Log),
		appointmenthandler.NewAppointmentHandler(appointments, cfg.Log),
		bookinghandler.NewBookingHandler(booking, slotSealer, cfg.Log),
		ledgerhandler.NewLedgerHandler(ledger, cfg.Log),
		payouthandler.NewPayoutHandler(payouts, cfg.Log),
	}}
}
