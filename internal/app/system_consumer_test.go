package app

import (
	"testing"

	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/internal/logging"
)

func TestSystemCommandHandler(t *testing.T) {
	tests := []struct {
		topic        string
		wantShutdown bool
	}{
		{topic: domain.TopicSystemShutdown, wantShutdown: true},
		{topic: domain.TopicPersonShutdown, wantShutdown: true},
		{topic: domain.TopicSystemRestart, wantShutdown: true},
		{topic: domain.TopicPersonRestart, wantShutdown: true},
		{topic: domain.TopicSystemStart},
		{topic: domain.TopicPersonStart},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			calls := 0
			h := NewSystemCommandHandler(func() { calls++ }, logging.Nop())

			handler, ok := h.Bindings()[tt.topic]
			if !ok {
				t.Fatalf("no binding for %s", tt.topic)
			}
			if ack := handler([]byte(`{}`)); !ack {
				t.Fatal("expected command to be acknowledged")
			}
			if got := calls == 1; got != tt.wantShutdown {
				t.Fatalf("shutdown called %d times", calls)
			}
		})
	}
}
