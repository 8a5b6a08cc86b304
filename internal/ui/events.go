package ui

import (
	"github.com/penguinpowernz/deeptalk/internal/commands"
)

type EventSlashCommand commands.Result
type EventExit struct{}
type EventCancelStream struct{}
type EventStreamCancelled struct{}
type EventStreamStarted string
type EventStreamThink string
type EventStreamEnded string
type EventStreamChunk string
type EventSystemMsg string
type EventUserPrompt string
type EventStreamErr error
type EventAssistantMessage string
