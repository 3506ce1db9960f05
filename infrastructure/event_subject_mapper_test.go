package infrastructure

import (
	"testing"

	"pointsbank/events"

	"github.com/stretchr/testify/assert"
)

func TestEventSubjectMapper_RoundTrip(t *testing.T) {
	mapper := NewEventSubjectMapper()

	subjects := mapper.GetAllSubjects()
	assert.Len(t, subjects, len(events.AllEventTypes()))

	for i, eventType := range events.AllEventTypes() {
		assert.NotEmpty(t, subjects[i], "missing subject for %s", eventType)
		assert.Equal(t, eventType, mapper.MapSubjectToEventType(subjects[i]))
	}

	assert.Equal(t, "economy.game.settled", mapper.MapEventToSubject(events.GameSettledEvent{}))
	assert.Equal(t, events.EventType("chat.message"), mapper.MapSubjectToEventType("chat.message"))
}
