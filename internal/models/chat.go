package models

import "time"

// ChatMessage is one turn of a chatbot conversation (MongoDB)
type ChatMessage struct {
	ID        string    `json:"id" bson:"_id"`
	UID       string    `json:"uid" bson:"uid"`
	Sender    string    `json:"sender" bson:"sender"` // member or bot
	Text      string    `json:"text" bson:"text"`
	Source    string    `json:"source,omitempty" bson:"source,omitempty"` // script, remote, fallback
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// QuickReply is a canned option the client renders under a bot message
type QuickReply struct {
	Title string `json:"title" yaml:"title"`
	Value string `json:"value" yaml:"value"`
}

type ChatRequest struct {
	Message string `json:"message" validate:"required,max=1000"`
}

type ChatResponse struct {
	Message      ChatMessage  `json:"message"`
	QuickReplies []QuickReply `json:"quickReplies,omitempty"`
}
