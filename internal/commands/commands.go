// Package commands defines the boundary between the relay core and the
// command executor collaborator. The core never interprets command syntax;
// it hands the executor a Dispatchable and routes on the result shape.
package commands

import (
	"context"

	"github.com/LeventeLantos/signal-relay/internal/model"
	"github.com/LeventeLantos/signal-relay/internal/signald"
)

type Status string

const (
	StatusSuccess      Status = "SUCCESS"
	StatusError        Status = "ERROR"
	StatusNoop         Status = "NOOP"
	StatusUnauthorized Status = "UNAUTHORIZED"
)

type Command string

const (
	Add            Command = "ADD"
	Accept         Command = "ACCEPT"
	Broadcast      Command = "BROADCAST"
	Decline        Command = "DECLINE"
	Destroy        Command = "DESTROY"
	Help           Command = "HELP"
	HotlineOff     Command = "HOTLINE_OFF"
	HotlineOn      Command = "HOTLINE_ON"
	Info           Command = "INFO"
	Invite         Command = "INVITE"
	Join           Command = "JOIN"
	Leave          Command = "LEAVE"
	None           Command = "NOOP"
	Private        Command = "PRIVATE"
	Remove         Command = "REMOVE"
	Rename         Command = "RENAME"
	Reply          Command = "REPLY"
	SetDescription Command = "SET_DESCRIPTION"
	SetLanguage    Command = "SET_LANGUAGE"
	VouchLevel     Command = "VOUCH_LEVEL"
	VouchingAdmin  Command = "VOUCHING_ADMIN"
	VouchingOff    Command = "VOUCHING_OFF"
	VouchingOn     Command = "VOUCHING_ON"
)

// Dispatchable is the unit of work the dispatcher threads through every
// downstream call: the channel the message arrived on, the resolved sender,
// and the outbound form of the message.
type Dispatchable struct {
	Channel *model.Channel
	Sender  model.Sender
	Message signald.Request
}

// Notification is an additional send requested by a command (e.g. a welcome
// message to a newly added member).
type Notification struct {
	Recipient string
	Message   string
}

// Result is what the executor hands back to the core.
type Result struct {
	Status        Status
	Command       Command
	Message       string
	Payload       []string
	Notifications []Notification
}

// Executor processes a parsed command. Implemented outside the core.
type Executor interface {
	ProcessCommand(ctx context.Context, d Dispatchable) (Result, error)
}

// RelayOnly is the executor used when no command processor is plugged in:
// admin messages become broadcasts, everything else is a hotline candidate.
type RelayOnly struct{}

func (RelayOnly) ProcessCommand(_ context.Context, d Dispatchable) (Result, error) {
	if d.Sender.Type == model.MemberTypeAdmin {
		return Result{
			Status:  StatusSuccess,
			Command: Broadcast,
			Message: d.Message.MessageBody,
		}, nil
	}
	return Result{Status: StatusNoop, Command: None}, nil
}
