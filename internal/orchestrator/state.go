package orchestrator

// State names one phase of an analysis run. The machine is strictly
// sequential: a pending state is entered only after the previous domain
// resolved, and the only branches are into StateFailed.
type State string

const (
	StateInit             State = "init"
	StateMarketPending    State = "market_pending"
	StateSentimentPending State = "sentiment_pending"
	StateSafetyPending    State = "safety_pending"
	StateAggregating      State = "aggregating"
	StatePersisting       State = "persisting"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// AckFunc is invoked once on entry to each state, before work in that state
// begins. Because the machine advances only after the current domain
// resolves, the transition out of a pending state is the acknowledgement
// for the domain that just completed: exactly one per domain, always in
// market, sentiment, safety order, never while another domain call for the
// same request is in flight. A nil AckFunc disables acknowledgements.
type AckFunc func(state State)
