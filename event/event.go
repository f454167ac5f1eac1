// Package event holds the messages exchanged between machines.
package event

import "fmt"

// The identifier of an event, e.g. "ping".
type Name string

// An id that identifies a message.
//
// The id is derived from the sender, the number of messages the sender sent before, the target and the event.
// It does not depend on the payload, so a program that makes the same deliveries sends messages with the same ids in every run.
type EventId string

// Identifies a machine instance by the name of its automaton and an instance index.
//
// The zero value does not identify any machine and is used as the source of externally injected messages.
type MachineID struct {
	Name  string
	Index int
}

// Returns true if the id identifies some machine
func (id MachineID) Valid() bool {
	return id.Name != ""
}

func (id MachineID) String() string {
	if !id.Valid() {
		return "<external>"
	}
	return fmt.Sprintf("%s(%d)", id.Name, id.Index)
}

// A Message is an immutable record of an event sent to a target machine.
//
// All fields are unexported so that a message can not be changed after it is created.
// The payload is shared by reference and must not be mutated by the sender after sending.
type Message struct {
	source  MachineID
	target  MachineID
	event   Name
	payload any
	seq     int

	id EventId
}

// Create the seq-th message sent by source, counting from 0.
//
// source is the zero MachineID for messages injected by the runtime, e.g. initial events.
func NewMessage(source MachineID, seq int, target MachineID, evt Name, payload any) Message {
	return Message{
		source:  source,
		target:  target,
		event:   evt,
		payload: payload,
		seq:     seq,

		id: EventId(fmt.Sprintf("Message From: %v, Seq: %d, To: %v, Event: %v", source, seq, target, evt)),
	}
}

// Returns the sending machine and true, or the zero id and false if the message was injected externally.
func (m Message) Source() (MachineID, bool) {
	return m.source, m.source.Valid()
}

// The machine the message is delivered to
func (m Message) Target() MachineID {
	return m.target
}

func (m Message) Event() Name {
	return m.event
}

func (m Message) Payload() any {
	return m.payload
}

// The number of messages the source sent before this one
func (m Message) Seq() int {
	return m.seq
}

func (m Message) Id() EventId {
	return m.id
}

func (m Message) String() string {
	return fmt.Sprintf("{From: %v, To: %v, Event: %s}", m.source, m.target, m.event)
}

// Compares two messages.
//
// Returns true if both messages have the same id.
func MessagesEquals(a, b Message) bool {
	return a.Id() == b.Id()
}
