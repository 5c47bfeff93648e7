package app

import (
	"github.com/sirupsen/logrus"

	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/internal/logging"
	"github.com/omnixys/omnixys-person-service/pkg/rabbitmq"
)

// SystemCommandHandler reacts to orchestration commands on the event bus.
// Shutdown and restart both stop the process; a supervisor is expected to
// start it again after a restart.
type SystemCommandHandler struct {
	shutdown func()
	log      logrus.FieldLogger
}

func NewSystemCommandHandler(shutdown func(), logger logrus.FieldLogger) *SystemCommandHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SystemCommandHandler{
		shutdown: shutdown,
		log:      logger.WithField("component", "system-commands"),
	}
}

// Bindings maps every command routing key to its handler.
func (h *SystemCommandHandler) Bindings() map[string]rabbitmq.Handler {
	return map[string]rabbitmq.Handler{
		domain.TopicSystemShutdown: h.handle(domain.TopicSystemShutdown),
		domain.TopicPersonShutdown: h.handle(domain.TopicPersonShutdown),
		domain.TopicSystemRestart:  h.handle(domain.TopicSystemRestart),
		domain.TopicPersonRestart:  h.handle(domain.TopicPersonRestart),
		domain.TopicSystemStart:    h.handle(domain.TopicSystemStart),
		domain.TopicPersonStart:    h.handle(domain.TopicPersonStart),
	}
}

func (h *SystemCommandHandler) handle(topic string) rabbitmq.Handler {
	return func([]byte) bool {
		h.Handle(topic)
		return true
	}
}

// Handle runs the command for topic. Unknown topics are ignored.
func (h *SystemCommandHandler) Handle(topic string) {
	log := h.log.WithField("topic", topic)
	switch topic {
	case domain.TopicSystemShutdown, domain.TopicPersonShutdown:
		log.Info("shutdown command received")
		h.shutdown()
	case domain.TopicSystemRestart, domain.TopicPersonRestart:
		log.Info("restart command received; stopping for the supervisor to restart")
		h.shutdown()
	case domain.TopicSystemStart, domain.TopicPersonStart:
		log.Info("start command received")
	default:
		log.Warn("unknown system command")
	}
}
