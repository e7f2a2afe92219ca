package ledger

import "xyron.node/xyn/internal/types"

// activitySet holds the participants and messages admitted since the last
// commit. It is owned by Engine and only touched under Engine.mu.
type activitySet struct {
	seen        map[string]struct{}
	order       []string
	messages    []types.PendingMessage
	validations int
}

func newActivitySet() *activitySet {
	return &activitySet{seen: make(map[string]struct{})}
}

// add records participant once per interval and queues msg when present.
func (a *activitySet) add(participant string, msg *types.PendingMessage) {
	a.validations++
	if _, ok := a.seen[participant]; !ok {
		a.seen[participant] = struct{}{}
		a.order = append(a.order, participant)
	}
	if msg != nil {
		a.messages = append(a.messages, *msg)
	}
}

func (a *activitySet) empty() bool {
	return len(a.order) == 0 && len(a.messages) == 0
}

// snapshot copies the participants and messages for a block.
func (a *activitySet) snapshot() ([]string, []types.PendingMessage) {
	participants := make([]string, len(a.order))
	copy(participants, a.order)
	messages := make([]types.PendingMessage, len(a.messages))
	copy(messages, a.messages)
	return participants, messages
}

func (a *activitySet) reset() {
	a.seen = make(map[string]struct{})
	a.order = nil
	a.messages = nil
	a.validations = 0
}
