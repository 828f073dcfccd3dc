package event

import (
	"context"
	"testing"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

type stubHandler struct {
	name string
}

func (h *stubHandler) Handle(context.Context, shared.DomainEvent) error { return nil }

func (h *stubHandler) EventTypes() []string { return nil }

func TestHandlerRegistry_Register(t *testing.T) {
	registry := NewHandlerRegistry()
	payments := &stubHandler{name: "payments"}
	audit := &stubHandler{name: "audit"}

	registry.Register(payments, "PaymentAllocated", "ReconciliationCompleted")
	registry.Register(audit)

	handlers := registry.GetHandlers("PaymentAllocated")
	assert.Equal(t, []shared.EventHandler{payments, audit}, handlers)

	handlers = registry.GetHandlers("ReminderSent")
	assert.Equal(t, []shared.EventHandler{audit}, handlers)

	assert.Equal(t, 2, registry.Len())
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	first := &stubHandler{name: "first"}
	second := &stubHandler{name: "second"}
	audit := &stubHandler{name: "audit"}

	registry.Register(first, "ReminderSent")
	registry.Register(second, "ReminderSent")
	registry.Register(audit)

	t.Run("removes only the target", func(t *testing.T) {
		registry.Unregister(first)
		assert.Equal(t, []shared.EventHandler{second, audit}, registry.GetHandlers("ReminderSent"))
	})

	t.Run("drops empty event types", func(t *testing.T) {
		registry.Unregister(second)
		registry.Unregister(audit)
		assert.Empty(t, registry.GetHandlers("ReminderSent"))
		assert.Zero(t, registry.Len())
	})
}

func TestHandlerRegistry_GetHandlersReturnsCopy(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := &stubHandler{name: "h"}
	registry.Register(handler, "ReminderSent")

	handlers := registry.GetHandlers("ReminderSent")
	handlers[0] = &stubHandler{name: "replaced"}

	assert.Equal(t, handler, registry.GetHandlers("ReminderSent")[0])
}
