package models

// EventKind is the type tag of one pipeline progress event.
type EventKind string

const (
	EventAgentStart EventKind = "agent_start"
	EventAgentDone  EventKind = "agent_done"
	EventResult     EventKind = "result"
	EventDone       EventKind = "done"
	EventError      EventKind = "error"
)

// ProgressEvent is one unit of the streaming progress protocol. Events are
// produced and consumed within a single pipeline invocation and never
// persisted. Data carries the kind-specific payload that is serialized on
// the wire.
type ProgressEvent struct {
	Kind EventKind
	Data interface{}
}

// AgentStartData is the payload of an agent_start event.
type AgentStartData struct {
	Agent string `json:"agent"`
	Label string `json:"label"`
	Step  int    `json:"step"`
}

// AgentDoneData is the payload of an agent_done event.
type AgentDoneData struct {
	Agent   string `json:"agent"`
	Step    int    `json:"step"`
	Label   string `json:"label,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// ResultData is the payload of a result event: the merged outcome of one
// pipeline invocation, before persistence.
type ResultData struct {
	Message      string        `json:"message"`
	WidgetUpdate *WidgetUpdate `json:"widget_update"`
	Filters      []FilterSpec  `json:"filters"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Message string `json:"message"`
}

// DoneData is the payload of the terminal done event: the turns persisted
// this invocation plus the updated widget.
type DoneData struct {
	Messages []ChatMessage `json:"messages"`
	Widget   *Widget       `json:"widget"`
}

// AgentStart builds an agent_start event.
func AgentStart(agent, label string, step int) ProgressEvent {
	return ProgressEvent{Kind: EventAgentStart, Data: AgentStartData{Agent: agent, Label: label, Step: step}}
}

// AgentDone builds an agent_done event.
func AgentDone(agent string, step int) ProgressEvent {
	return ProgressEvent{Kind: EventAgentDone, Data: AgentDoneData{Agent: agent, Step: step}}
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(message string) ProgressEvent {
	return ProgressEvent{Kind: EventError, Data: ErrorData{Message: message}}
}
