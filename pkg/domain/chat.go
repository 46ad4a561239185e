package domain

// Role of a conversation turn as understood by the chat completion API.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one remembered message of a conversation.
type Turn struct {
	Role    Role
	Content string
}
