package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	appointmentrepo "mediq/internal/appointments/repository"
	appointmentservice "mediq/internal/appointments/service"
	doctorrepo "mediq/internal/doctors/repository"
	"mediq/internal/events"
	slotrepo "mediq/internal/slots/repository"
	slotservice "mediq/internal/slots/service"
	slotvalidator "mediq/internal/slots/validator"
	"mediq/pkg/config"
	"mediq/pkg/kafka"
	kafka_config "mediq/pkg/kafka/config"
	kafkamiddleware "mediq/pkg/kafka/middleware"
)

const ServiceName = "completion-worker"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.Log.Info("Starting completion worker")
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	appointments := initAppointmentService(cfg)

	consumer, err := kafka.NewConsumer(
		kafka_config.Load(),
		cfg.CompletionTopic,
		cfg.CompletionConsumerGroup,
		cfg.CompletionTopic+".dlq",
		completionHandler(cfg, appointments),
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	defer consumer.Close()
	consumer.Use(kafkamiddleware.LoggingConsumerMiddleware())
	consumer.Use(kafkamiddleware.MetricsConsumerMiddleware())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Consuming completion events",
		"topic", cfg.CompletionTopic,
		"group", cfg.CompletionConsumerGroup,
	)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped with error", "error", err)
	}
	cfg.Log.Info("Completion worker shut down")
}

// completionHandler marks an appointment completed when the consultation
// platform reports the visit happened. Complete is idempotent, so redelivered
// messages are safe; a genuinely invalid transition is a permanent error and
// goes to the DLQ instead of retrying.
func completionHandler(cfg *config.Config, appointments appointmentservice.AppointmentService) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event events.CompletionEvent
		if err := msg.DecodeValue(&event); err != nil {
			return kafka.NewPermanentError("failed to decode completion event", err)
		}
		if event.AppointmentID == "" {
			return kafka.NewPermanentError("completion event has no appointment id", nil)
		}

		appointment, err := appointments.Complete(ctx, event.AppointmentID)
		if err != nil {
			return err
		}

		cfg.Log.Info("Appointment completed",
			"appointment_id", appointment.ID,
			"event_id", msg.GetEventID(),
		)
		return nil
	}
}

func initAppointmentService(cfg *config.Config) appointmentservice.AppointmentService {
	doctors := doctorrepo.NewMongoDoctorRepository(cfg)

	slots := slotservice.NewSlotService(
		slotrepo.NewMongoSlotRepository(cfg),
		slotrepo.NewSlotLockRepository(cfg),
		doctors,
		slotvalidator.NewSlotValidator(cfg.Log),
		cfg,
	)

	return appointmentservice.NewAppointmentService(
		appointmentrepo.NewMongoAppointmentRepository(cfg),
		slots,
		initPublisher(cfg),
		cfg,
	)
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
	return events.NewKafkaPublisher(producer, cfg.Log)
}
