package domain

import (
	"encoding/json"
	"time"
)

// Agent is a registered agent endpoint.
type Agent struct {
	Name         string          `json:"name"`
	Endpoint     string          `json:"endpoint"`
	Capabilities json.RawMessage `json:"capabilities,omitempty"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Well-known pipeline agents.
const (
	AgentContentCreator        = "content-creator"
	AgentTemplateConverter     = "template-converter"
	AgentSourceManager         = "source-manager"
	AgentResearchValidation    = "research-validation"
	AgentDocumentationPipeline = "documentation-pipeline"
	AgentWorkshopChat          = "workshop-chat"
)
