// Package event provides a synchronous pub-sub bus for fabric run lifecycle
// events.
//
// The orchestrator publishes; renderers, telemetry and logging subscribe.
// Neither side holds a reference to the other.
//
// # Event Categories
//
// Run lifecycle: [RunStartedEvent], [PhaseChangedEvent], [RunCompletedEvent],
// [RunFailedEvent].
//
// Job: [JobCreatedEvent], [JobPolledEvent].
//
// Local step sequence: [StepStartedEvent], [StepCompletedEvent].
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//
//	bus.Subscribe(event.TypeRunCompleted, func(e event.Event) {
//	    done := e.(event.RunCompletedEvent)
//	    fmt.Println("fabric ready:", done.FabricID)
//	})
//
//	id := bus.SubscribeAll(func(e event.Event) {
//	    logger.Debug("event", "type", e.EventType())
//	})
//	defer bus.Unsubscribe(id)
//
// Handlers are called synchronously on the publishing goroutine and are
// protected against panics.
package event
