// Package journey implements the scripted conversational journeys behind the
// agent chat: the journey catalog, the append-only message timeline, the step
// tracker, the per-journey handlers and the action dispatcher.
package journey

import (
	"slices"
	"time"
)

// Kind tags how a timeline entry renders.
type Kind string

const (
	KindUser         Kind = "user"
	KindAgent        Kind = "agent"
	KindThinking     Kind = "thinking"
	KindJourneyStep  Kind = "journey-step"
	KindConfirmation Kind = "confirmation"
	KindDocument     Kind = "document"
	KindSuccess      Kind = "success"
	KindInteractive  Kind = "interactive"
	KindInfoCard     Kind = "info-card"
)

// Style is the visual weight of an action button.
type Style string

const (
	StylePrimary   Style = "primary"
	StyleSecondary Style = "secondary"
	StyleGhost     Style = "ghost"
)

// Action is a button attached to a message.
type Action struct {
	Label string   `json:"label"`
	ID    ActionID `json:"action"`
	Style Style    `json:"style,omitempty"`
}

// Message is a single chat timeline entry.
// Seq is assigned by the timeline on append and is never reused.
type Message struct {
	Seq       int64     `json:"seq"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Steps     []string  `json:"steps,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Actions   []Action  `json:"actions,omitempty"`
}

// Field is one labelled value in a confirmation or interactive card.
type Field struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Icon     string `json:"icon,omitempty"`
	Verified bool   `json:"verified,omitempty"`
	Editable bool   `json:"editable,omitempty"`
}

// Input describes a free-form entry box rendered inside a card.
type Input struct {
	Type        string `json:"type"`
	Placeholder string `json:"placeholder"`
	ID          string `json:"id"`
}

// FieldList is the payload of confirmation and interactive messages.
// Action, when set, is the submit button of a confirmation card.
type FieldList struct {
	Title  string   `json:"title,omitempty"`
	Fields []Field  `json:"fields"`
	Action ActionID `json:"action,omitempty"`
}

// InfoCard is the payload of info-card messages.
type InfoCard struct {
	Icon     string  `json:"icon,omitempty"`
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle,omitempty"`
	Items    []Field `json:"items,omitempty"`
	Input    *Input  `json:"input,omitempty"`
}

// Detail is a headline figure on an offer.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// PlanOption is a selectable loan plan.
type PlanOption struct {
	Label string `json:"label"`
	EMI   string `json:"emi"`
}

// CardOption is a selectable credit card.
type CardOption struct {
	Name     string   `json:"name"`
	Limit    string   `json:"limit"`
	Fee      string   `json:"fee"`
	Benefits []string `json:"benefits"`
}

// SectionItem is a line inside a plan section.
type SectionItem struct {
	Name    string `json:"name"`
	Amount  string `json:"amount"`
	Returns string `json:"returns"`
}

// Section groups plan items under a heading.
type Section struct {
	Name  string        `json:"name"`
	Items []SectionItem `json:"items"`
}

// Summary totals a plan.
type Summary struct {
	TotalInvestment   string `json:"total_investment"`
	TaxSaved          string `json:"tax_saved"`
	AdditionalReturns string `json:"additional_returns"`
}

// Allocation is one slice of an investment portfolio.
type Allocation struct {
	Category   string `json:"category"`
	Percentage int    `json:"percentage"`
	Amount     string `json:"amount"`
	Risk       string `json:"risk"`
	Returns    string `json:"returns"`
}

// Projection is a projected portfolio value at a horizon.
type Projection struct {
	Year    int    `json:"year"`
	Amount  string `json:"amount"`
	Returns string `json:"returns"`
}

// Offer is the payload of journey-step messages. Only the blocks relevant to
// the product are populated. Action is the selection or proceed action.
type Offer struct {
	Title       string       `json:"title"`
	Highlight   string       `json:"highlight,omitempty"`
	Details     []Detail     `json:"details,omitempty"`
	Options     []PlanOption `json:"options,omitempty"`
	Cards       []CardOption `json:"card_options,omitempty"`
	Sections    []Section    `json:"sections,omitempty"`
	Summary     *Summary     `json:"summary,omitempty"`
	Allocation  []Allocation `json:"allocation,omitempty"`
	Projections []Projection `json:"projections,omitempty"`
	Action      ActionID     `json:"action,omitempty"`
}

// Document is the payload of document messages.
type Document struct {
	Title    string  `json:"title"`
	Filename string  `json:"filename"`
	MimeType string  `json:"mime_type"`
	Fields   []Field `json:"fields,omitempty"`
}

// Success is the payload of the terminal message of a journey.
type Success struct {
	Title         string   `json:"title"`
	Reference     string   `json:"reference"`
	AccountNumber string   `json:"account_number,omitempty"`
	Details       []string `json:"details"`
	NextSteps     []string `json:"next_steps"`
}

// actionIDs returns every action a message offers, including the submit or
// select action carried in its payload.
// clone copies m with its own Steps and Actions. Payloads are values built
// once by the handlers and never modified after append.
func (m Message) clone() Message {
	m.Steps = slices.Clone(m.Steps)
	m.Actions = slices.Clone(m.Actions)
	return m
}

func (m Message) actionIDs() []ActionID {
	ids := make([]ActionID, 0, len(m.Actions)+1)
	for _, a := range m.Actions {
		ids = append(ids, a.ID)
	}
	switch p := m.Payload.(type) {
	case FieldList:
		if p.Action != "" {
			ids = append(ids, p.Action)
		}
	case Offer:
		if p.Action != "" {
			ids = append(ids, p.Action)
		}
	}
	return ids
}
