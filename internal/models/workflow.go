package models

import (
	"time"
)

// Workflow node types
const (
	NodeTypeVisit     = "visit"
	NodeTypeMessage   = "message"
	NodeTypeConnect   = "connect"
	NodeTypeFollow    = "follow"
	NodeTypeWait      = "wait"
	NodeTypeCheck     = "check_connection"
	NodeTypeReply     = "reply"
	NodeTypeCondition = "condition"
	NodeTypeLoopEntry = "loop_entry"
)

// Workflow is a directed graph of action nodes. Immutable during a run;
// edited out-of-band by the admin layer.
type Workflow struct {
	ID          string  `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string  `json:"name" gorm:"type:varchar(255);not null"`
	EntryNodeID *string `json:"entry_node_id" gorm:"type:uuid"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Nodes []WorkflowNode `json:"nodes,omitempty" gorm:"foreignKey:WorkflowID;references:ID;constraint:OnDelete:CASCADE"`
	Edges []WorkflowEdge `json:"edges,omitempty" gorm:"foreignKey:WorkflowID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Workflow model
func (Workflow) TableName() string {
	return "workflows"
}

// WorkflowNode is a typed action node. Config carries node-specific settings
// (message template, wait bounds, condition field/value).
type WorkflowNode struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	WorkflowID string `json:"workflow_id" gorm:"not null;index;type:uuid"`
	Type       string `json:"type" gorm:"type:varchar(30);not null"`
	Label      string `json:"label" gorm:"type:varchar(255)"`
	Config     JSON   `json:"config,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the WorkflowNode model
func (WorkflowNode) TableName() string {
	return "workflow_nodes"
}

// WorkflowEdge connects two nodes. Condition nodes use Label ("true"/"false")
// to select among outgoing edges; all other nodes have a single unlabeled one.
type WorkflowEdge struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	WorkflowID string `json:"workflow_id" gorm:"not null;index;type:uuid"`
	SourceID   string `json:"source_id" gorm:"not null;index;type:uuid"`
	TargetID   string `json:"target_id" gorm:"not null;type:uuid"`
	Label      string `json:"label" gorm:"type:varchar(30)"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the WorkflowEdge model
func (WorkflowEdge) TableName() string {
	return "workflow_edges"
}
