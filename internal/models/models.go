// Package models defines the core data structures for TerraPipe.
//
// It includes conversation messages, chat turns, lookup results and the API
// response envelope, which are shared across modules.
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Validation constants for input validation
const (
	// MaxInputLength defines the maximum accepted length of one user submission in bytes
	MaxInputLength = 8192
)

// Error variables for better error handling and testability
var (
	ErrEmptyInput        = errors.New("input cannot be empty")
	ErrInputTooLong      = errors.New("input exceeds maximum length")
	ErrSubmissionPending = errors.New("a submission is already in progress for this session")
	ErrSessionNotFound   = errors.New("session not found")
	ErrLookupNotFound    = errors.New("no matching result")
	ErrEmptySessionID    = errors.New("session id cannot be empty")
)

// Sender identifies who authored a conversation message.
type Sender string

const (
	// SenderUser marks messages typed by the farmer.
	SenderUser Sender = "user"
	// SenderBot marks regular assistant messages.
	SenderBot Sender = "bot"
	// SenderError marks validation and failure notices.
	SenderError Sender = "error"
)

// Message is one immutable entry in a questionnaire conversation.
type Message struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Step      StepID    `json:"step"` // step current when the message was appended
}

// NewMessage builds a message with a fresh identifier and timestamp.
func NewMessage(sender Sender, step StepID, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Text:      text,
		Sender:    sender,
		Step:      step,
	}
}

// Role is the author of a chat completion turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single entry of a chat completion history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the persisted history of a legal-assistant conversation.
type Transcript struct {
	ID        string    `json:"id"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusRejected indicates the submission was processed but did not validate.
	APIStatusRejected APIStatus = "rejected"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Rejected creates a response for input that was processed but refused by validation.
func Rejected(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusRejected), Message: message, Result: result}
}

// Error creates an error API response with the given message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
