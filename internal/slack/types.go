package slack

import "context"

// Event is the inner event of an Events API callback, reduced to the fields
// the dispatcher routes on.
type Event struct {
	Type string `json:"type"`
	User string `json:"user"`
	Tab  string `json:"tab,omitempty"`
}

// Interaction is a block action or view submission payload.
type Interaction struct {
	Type      string `json:"type"` // block_actions | view_submission
	TriggerID string `json:"trigger_id"`
	User      struct {
		ID string `json:"id"`
	} `json:"user"`
	Actions []Action        `json:"actions,omitempty"`
	View    InteractionView `json:"view,omitempty"`
}

type Action struct {
	ActionID string `json:"action_id"`
	Value    string `json:"value,omitempty"`
}

type InteractionView struct {
	CallbackID      string `json:"callback_id"`
	PrivateMetadata string `json:"private_metadata,omitempty"`
	State           struct {
		Values map[string]map[string]StateValue `json:"values"`
	} `json:"state"`
}

// StateValue is a submitted input value; which field is set depends on the
// element type.
type StateValue struct {
	Value         string   `json:"value,omitempty"`
	SelectedDate  string   `json:"selected_date,omitempty"`
	SelectedUser  string   `json:"selected_user,omitempty"`
	SelectedUsers []string `json:"selected_users,omitempty"`
}

// Value returns a submitted input value by block id and action id.
func (v InteractionView) Value(blockID, actionID string) (StateValue, bool) {
	block, ok := v.State.Values[blockID]
	if !ok {
		return StateValue{}, false
	}
	sv, ok := block[actionID]
	return sv, ok
}

// Handler receives platform events from a transport. Transports deliver
// events one at a time; a handler never sees overlapping calls from the same
// transport.
type Handler interface {
	HandleEvent(ctx context.Context, event Event)
	HandleInteraction(ctx context.Context, interaction Interaction)
}
