package convo

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is one resolved exchange unit. For assistant turns Content holds the
// final answer only; the deliberation text is kept alongside for display and
// export but is never serialized back into a request.
type Turn struct {
	Role         string    `json:"role" yaml:"role"`
	Content      string    `json:"content" yaml:"content"`
	Deliberation string    `json:"deliberation,omitempty" yaml:"deliberation,omitempty"`
	Unterminated bool      `json:"unterminated,omitempty" yaml:"unterminated,omitempty"`
	At           time.Time `json:"at" yaml:"at"`
}
