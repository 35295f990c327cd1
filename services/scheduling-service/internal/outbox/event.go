// Package outbox stores notification intents next to the appointment data and
// relays them to Kafka. The topic of a record equals its event type.
package outbox

import (
	"encoding/json"
	"fmt"

	"github.com/calmspace/practice/libs/events"
)

const aggregateAppointment = "appointment"

type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// FromIntent encodes a scheduling intent as an outbox event.
func FromIntent(intent events.Intent) (Event, error) {
	payload, err := json.Marshal(intent.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", intent.Type, err)
	}
	return Event{
		AggregateType: aggregateAppointment,
		AggregateID:   intent.AggregateID,
		EventType:     intent.Type,
		Payload:       payload,
	}, nil
}
