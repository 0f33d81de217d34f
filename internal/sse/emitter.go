package sse

import (
	"context"
	"encoding/json"
	"sync"

	"ms-booking/internal/models"
)

// BookingEventEmitter fans booking events out to live SSE clients. Clients
// follow either a trip (seat availability) or a single payment reference.
type BookingEventEmitter struct {
	mu          sync.RWMutex
	tripClients map[string][]chan models.BookingEvent
	refClients  map[string][]chan models.BookingEvent
}

func NewBookingEventEmitter() *BookingEventEmitter {
	return &BookingEventEmitter{
		tripClients: make(map[string][]chan models.BookingEvent),
		refClients:  make(map[string][]chan models.BookingEvent),
	}
}

// SubscribeToTrip registers a client for every event on tripID until ctx ends.
func (e *BookingEventEmitter) SubscribeToTrip(ctx context.Context, tripID string) <-chan models.BookingEvent {
	return e.subscribe(ctx, e.tripClients, tripID)
}

// SubscribeToReference registers a client for events of one payment reference.
func (e *BookingEventEmitter) SubscribeToReference(ctx context.Context, reference string) <-chan models.BookingEvent {
	return e.subscribe(ctx, e.refClients, reference)
}

func (e *BookingEventEmitter) subscribe(ctx context.Context, clients map[string][]chan models.BookingEvent, key string) <-chan models.BookingEvent {
	clientChan := make(chan models.BookingEvent, 10)

	e.mu.Lock()
	clients[key] = append(clients[key], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(clients, key, clientChan)
	}()
	return clientChan
}

// Emit broadcasts event to its trip and reference subscribers. Slow clients
// miss events rather than block the emitter.
func (e *BookingEventEmitter) Emit(event models.BookingEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	send := func(clients []chan models.BookingEvent) {
		for _, clientChan := range clients {
			select {
			case clientChan <- event:
			default:
			}
		}
	}
	if event.TripID != "" {
		send(e.tripClients[event.TripID])
	}
	if event.Reference != "" {
		send(e.refClients[event.Reference])
	}
}

// Publish lets the emitter sit beside the Kafka producer as an event sink.
func (e *BookingEventEmitter) Publish(_ context.Context, _, _ string, value []byte) error {
	var event models.BookingEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}
	e.Emit(event)
	return nil
}

func (e *BookingEventEmitter) ClientCount(tripID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.tripClients[tripID])
}

func (e *BookingEventEmitter) remove(clients map[string][]chan models.BookingEvent, key string, clientChan chan models.BookingEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := clients[key]
	for i, ch := range list {
		if ch == clientChan {
			clients[key] = append(list[:i], list[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(clients[key]) == 0 {
		delete(clients, key)
	}
}
