package websocket

import "github.com/google/uuid"

// AllLoansTopic is the topic of clients that follow every loan
const AllLoansTopic = ""

// TopicFor returns the topic of clients following loanID. uuid.Nil is AllLoansTopic.
func TopicFor(loanID uuid.UUID) string {
	if loanID == uuid.Nil {
		return AllLoansTopic
	}
	return loanID.String()
}

// EventPublisher defines the interface for publishing loan events to WebSocket clients
type EventPublisher interface {
	// Publish sends an event to clients following all loans and to clients following loanID
	Publish(loanID uuid.UUID, event Event)
}

// Ensure Hub implements EventPublisher
var _ EventPublisher = (*Hub)(nil)

// Publish implements EventPublisher by broadcasting to both topics
func (h *Hub) Publish(loanID uuid.UUID, event Event) {
	h.Broadcast(AllLoansTopic, event)
	if loanID != uuid.Nil {
		h.Broadcast(TopicFor(loanID), event)
	}
}
