package domain

import "time"

// ConversationTurn is one question/answer exchange for a document. Only a
// bounded recent suffix of turns is ever fed back into prompt assembly.
type ConversationTurn struct {
	DocumentID string    `json:"document_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	CreatedAt  time.Time `json:"created_at"`
}
