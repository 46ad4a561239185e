package domain

// PendingKind names the input a user was last asked for.
type PendingKind string

const (
	PendingImagePrompt PendingKind = "image_prompt"
	PendingSpeechText  PendingKind = "speech_text"
	PendingEditPhoto   PendingKind = "edit_photo"
)

// Pending is an outstanding request for user input. Payload carries the edit instruction.
type Pending struct {
	Kind    PendingKind `json:"kind"`
	Payload string      `json:"payload,omitempty"`
}
