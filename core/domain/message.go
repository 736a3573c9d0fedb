package domain

import "time"

// InboundMessage is an email fetched from the mailbox. It is immutable once
// fetched; downstream stages read it but never mutate it.
type InboundMessage struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	From       string    `json:"from"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// ProcessedMessageRecord is the durable "already handled" marker for a
// message. One exists for every message the pipeline has finished with,
// success or failure, so a message is never reprocessed.
type ProcessedMessageRecord struct {
	MessageID     string    `json:"message_id" db:"message_id"`
	JobsExtracted int       `json:"jobs_extracted" db:"jobs_extracted"`
	Archived      bool      `json:"archived" db:"archived"`
	ProcessedAt   time.Time `json:"processed_at" db:"processed_at"`
}
