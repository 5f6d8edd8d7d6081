// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"

	"go.yaml.in/yaml/v3"
)

// FeedbackLog is an ordered, append-only sequence of critique feedback.
// The zero value is an empty log.
type FeedbackLog struct {
	entries []CritiqueFeedback
}

// NewFeedbackLog builds a log from previously persisted entries.
func NewFeedbackLog(entries ...CritiqueFeedback) FeedbackLog {
	var l FeedbackLog
	for _, e := range entries {
		l.Append(e)
	}
	return l
}

// Append adds f to the end of the log.
func (l *FeedbackLog) Append(f CritiqueFeedback) {
	l.entries = append(l.entries, f.clone())
}

// Len returns the number of entries.
func (l FeedbackLog) Len() int { return len(l.entries) }

// Last returns the most recent entry.
func (l FeedbackLog) Last() (CritiqueFeedback, bool) {
	if len(l.entries) == 0 {
		return CritiqueFeedback{}, false
	}
	return l.entries[len(l.entries)-1].clone(), true
}

// All returns a copy of the entries in order.
func (l FeedbackLog) All() []CritiqueFeedback {
	out := make([]CritiqueFeedback, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.clone()
	}
	return out
}

func (l FeedbackLog) MarshalJSON() ([]byte, error) { return json.Marshal(l.All()) }

func (l *FeedbackLog) UnmarshalJSON(data []byte) error {
	var entries []CritiqueFeedback
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*l = NewFeedbackLog(entries...)
	return nil
}

func (l FeedbackLog) MarshalYAML() (any, error) { return l.All(), nil }

func (l *FeedbackLog) UnmarshalYAML(node *yaml.Node) error {
	var entries []CritiqueFeedback
	if err := node.Decode(&entries); err != nil {
		return err
	}
	*l = NewFeedbackLog(entries...)
	return nil
}

// MessageLog is an ordered, append-only sequence of agent messages.
type MessageLog struct {
	entries []AgentMessage
}

// NewMessageLog builds a log from previously persisted entries.
func NewMessageLog(entries ...AgentMessage) MessageLog {
	var l MessageLog
	for _, e := range entries {
		l.Append(e)
	}
	return l
}

// Append adds m to the end of the log.
func (l *MessageLog) Append(m AgentMessage) {
	l.entries = append(l.entries, copyMessage(m))
}

// Len returns the number of entries.
func (l MessageLog) Len() int { return len(l.entries) }

// Last returns the most recent entry.
func (l MessageLog) Last() (AgentMessage, bool) {
	if len(l.entries) == 0 {
		return AgentMessage{}, false
	}
	return copyMessage(l.entries[len(l.entries)-1]), true
}

// All returns a copy of the entries in order.
func (l MessageLog) All() []AgentMessage {
	out := make([]AgentMessage, len(l.entries))
	for i, e := range l.entries {
		out[i] = copyMessage(e)
	}
	return out
}

func (l MessageLog) MarshalJSON() ([]byte, error) { return json.Marshal(l.All()) }

func (l *MessageLog) UnmarshalJSON(data []byte) error {
	var entries []AgentMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*l = NewMessageLog(entries...)
	return nil
}

func (l MessageLog) MarshalYAML() (any, error) { return l.All(), nil }

func (l *MessageLog) UnmarshalYAML(node *yaml.Node) error {
	var entries []AgentMessage
	if err := node.Decode(&entries); err != nil {
		return err
	}
	*l = NewMessageLog(entries...)
	return nil
}

func copyMessage(m AgentMessage) AgentMessage {
	if m.Metadata == nil {
		return m
	}
	md := make(map[string]any, len(m.Metadata))
	for k, v := range m.Metadata {
		md[k] = v
	}
	m.Metadata = md
	return m
}
