package vision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Control kinds the engine understands. Anything else the model invents is
// mapped to ControlOther.
const (
	ControlConnect = "connect"
	ControlFollow  = "follow"
	ControlMessage = "message"
	ControlPending = "pending"
	ControlMore    = "more"
	ControlOther   = "other"
)

// Recommended actions a decision can carry.
const (
	ActionConnect = "connect"
	ActionFollow  = "follow"
	ActionMessage = "message"
	ActionNone    = "none"
)

// Connection degrees as shown on a profile.
const (
	DegreeFirst        = "1st"
	DegreeSecond       = "2nd"
	DegreeThird        = "3rd"
	DegreeOutOfNetwork = "out_of_network"
	DegreeUnknown      = "unknown"
)

// Control is one actionable element found on the profile page. Selector is
// set on the deterministic path; X/Y on the vision path.
type Control struct {
	Label      string  `json:"label"`
	Kind       string  `json:"kind"`
	Selector   string  `json:"selector,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
	InOverflow bool    `json:"in_overflow"`
}

// Decision is the engine's verdict about the page in front of a session.
type Decision struct {
	Degree            string    `json:"degree"`
	Controls          []Control `json:"controls"`
	InvitePending     bool      `json:"invite_pending"`
	ModalOpen         bool      `json:"modal_open"`
	RecommendedAction string    `json:"recommended_action"`
	FromCache         bool      `json:"-"`
}

// Find returns the highest-confidence control of the given kind, or nil.
func (d *Decision) Find(kind string) *Control {
	var best *Control
	for i := range d.Controls {
		c := &d.Controls[i]
		if c.Kind != kind {
			continue
		}
		if best == nil || c.Confidence > best.Confidence {
			best = c
		}
	}
	return best
}

// PickControl returns the best control matching the predicate at or above
// minConfidence. A direct control always beats one hidden behind the
// overflow menu; confidence breaks ties within each group.
func PickControl(d *Decision, predicate func(*Control) bool, minConfidence float64) *Control {
	var best *Control
	for i := range d.Controls {
		c := &d.Controls[i]
		if c.Confidence < minConfidence || !predicate(c) {
			continue
		}
		if best == nil {
			best = c
			continue
		}
		if best.InOverflow != c.InOverflow {
			if best.InOverflow {
				best = c
			}
			continue
		}
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	return best
}

// parseDecision decodes model output into a Decision, forcing every field
// into the known vocabulary. The model is treated as untrusted input.
func parseDecision(raw []byte) (*Decision, error) {
	var d Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode decision payload: %w", err)
	}
	sanitizeDecision(&d)
	return &d, nil
}

func sanitizeDecision(d *Decision) {
	switch d.Degree {
	case DegreeFirst, DegreeSecond, DegreeThird, DegreeOutOfNetwork:
	default:
		d.Degree = DegreeUnknown
	}

	switch d.RecommendedAction {
	case ActionConnect, ActionFollow, ActionMessage, ActionNone:
	default:
		d.RecommendedAction = ActionNone
	}

	kept := d.Controls[:0]
	for _, c := range d.Controls {
		c.Label = strings.TrimSpace(c.Label)
		switch c.Kind {
		case ControlConnect, ControlFollow, ControlMessage, ControlPending, ControlMore:
		default:
			c.Kind = ControlOther
		}
		if c.Confidence < 0 {
			c.Confidence = 0
		} else if c.Confidence > 1 {
			c.Confidence = 1
		}
		// Coordinates outside the viewport are unusable for clicking.
		if c.X < 0 || c.Y < 0 {
			continue
		}
		kept = append(kept, c)
	}
	d.Controls = kept

	if d.Find(ControlPending) != nil {
		d.InvitePending = true
	}
	if d.InvitePending {
		d.RecommendedAction = ActionNone
	}
}
