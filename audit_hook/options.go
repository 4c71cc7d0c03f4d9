package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger for the extension.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithEnabledActions restricts auditing to the given actions.
// Without it every action is recorded.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = setOf(actions)
	}
}

// WithDisabledActions skips the given actions.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.enabled == nil {
			e.enabled = setOf(allActions())
		}
		for _, action := range actions {
			delete(e.enabled, action)
		}
	}
}

func setOf(actions []string) map[string]bool {
	set := make(map[string]bool, len(actions))
	for _, a := range actions {
		set[a] = true
	}
	return set
}

// allActions returns all known audit actions.
func allActions() []string {
	return []string{
		ActionGroupCreated,
		ActionMembersAdded,
		ActionExpenseRecorded,
		ActionSettlementRecorded,
		ActionSimplificationAppended,
		ActionSimplificationFailed,
	}
}
