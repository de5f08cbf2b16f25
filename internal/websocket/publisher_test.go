package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestHub_Implements_EventPublisher(t *testing.T) {
	var _ EventPublisher = (*Hub)(nil)
}

func TestHub_Publish_ReachesBothTopics(t *testing.T) {
	hub := NewHub()
	loanID := uuid.New()

	allClient := newMockClient("all", AllLoansTopic)
	loanClient := newMockClient("loan", loanID.String())
	otherClient := newMockClient("other", uuid.New().String())
	hub.Register(allClient)
	hub.Register(loanClient)
	hub.Register(otherClient)

	var publisher EventPublisher = hub
	publisher.Publish(loanID, LoanUpdated(map[string]interface{}{"_id": loanID.String()}))

	// Allow async broadcast to complete
	time.Sleep(10 * time.Millisecond)

	assert.Len(t, allClient.GetMessages(), 1)
	assert.Len(t, loanClient.GetMessages(), 1)
	assert.Len(t, otherClient.GetMessages(), 0)
}

func TestHub_Publish_NilLoanOnlyReachesAllTopic(t *testing.T) {
	hub := NewHub()
	allClient := newMockClient("all", AllLoansTopic)
	hub.Register(allClient)

	hub.Publish(uuid.Nil, LoanDeleted(nil))
	time.Sleep(10 * time.Millisecond)

	assert.Len(t, allClient.GetMessages(), 1)
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, AllLoansTopic, TopicFor(uuid.Nil))

	id := uuid.New()
	assert.Equal(t, id.String(), TopicFor(id))
}
