package domain

import "time"

// Part is one segment of an A2A message.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// TaskMessage is the message body of an A2A task.
type TaskMessage struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// TaskRequest is the body POSTed to an agent's /send-task endpoint.
type TaskRequest struct {
	ID                  string      `json:"id"`
	AcceptedOutputModes []string    `json:"acceptedOutputModes"`
	Message             TaskMessage `json:"message"`
}

// TaskStatus is the state reported by an agent for a task.
type TaskStatus struct {
	State   string       `json:"state"`
	Message *TaskMessage `json:"message,omitempty"`
}

// TaskResult is the task echoed back by the agent.
type TaskResult struct {
	ID     string      `json:"id"`
	Status *TaskStatus `json:"status,omitempty"`
}

// TaskResponse is the body returned by an agent's /send-task endpoint.
type TaskResponse struct {
	ID     string      `json:"id"`
	Result *TaskResult `json:"result,omitempty"`
}

// Invocation records the outcome of one bridge call.
type Invocation struct {
	TaskID      string        `json:"task_id"`
	Agent       string        `json:"agent"`
	Tool        string        `json:"tool"`
	Endpoint    string        `json:"endpoint"`
	Instruction string        `json:"instruction"`
	State       string        `json:"state"`
	Result      string        `json:"result"`
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration_ns"`
}
