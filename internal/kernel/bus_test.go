package kernel

import (
	"testing"
)

func TestBusDeliveryOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	bus.Subscribe("ev", func(any) { order = append(order, 1) })
	bus.Subscribe("ev", func(any) { order = append(order, 2) })
	bus.Subscribe("ev", func(any) { order = append(order, 3) })

	bus.Publish("ev", nil)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("delivery order = %v, want [1 2 3]", order)
	}
}

func TestBusHandlerPanicIsolated(t *testing.T) {
	bus := NewBus()

	var delivered bool
	bus.Subscribe("ev", func(any) { panic("boom") })
	bus.Subscribe("ev", func(any) { delivered = true })

	bus.Publish("ev", nil)

	if !delivered {
		t.Error("panicking handler blocked delivery to later handlers")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	var count int
	unsub := bus.Subscribe("ev", func(any) { count++ })

	bus.Publish("ev", nil)
	unsub()
	bus.Publish("ev", nil)

	if count != 1 {
		t.Errorf("handler ran %d times, want 1", count)
	}
}

func TestBusPayload(t *testing.T) {
	bus := NewBus()

	var got any
	bus.Subscribe("ev", func(data any) { got = data })
	bus.Publish("ev", 42)

	if got != 42 {
		t.Errorf("payload = %v, want 42", got)
	}
}

func TestBusUnknownEvent(t *testing.T) {
	bus := NewBus()
	// Publishing with no subscribers must not panic.
	bus.Publish("nobody-listens", nil)
}
