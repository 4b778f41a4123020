package domain

// State represents the lifecycle state of a generation engine.
type State string

const (
	StateIdle        State = "idle"
	StateGenerating  State = "generating"
	StateMaintaining State = "maintaining"
)

// Event represents an action that triggers a state transition.
type Event string

const (
	EventBeginGeneration  Event = "begin_generation"
	EventEndGeneration    Event = "end_generation"
	EventBeginMaintenance Event = "begin_maintenance"
	EventEndMaintenance   Event = "end_maintenance"
)

// Transition defines a valid state change: an event moves the engine from Src to Dst.
type Transition struct {
	Event Event
	Src   State
	Dst   State
}

// Transitions defines all valid state changes of the engine.
// Generation and maintenance (archive, delete, clear, reset) are mutually
// exclusive; both may only start from idle.
var Transitions = []Transition{
	{Event: EventBeginGeneration, Src: StateIdle, Dst: StateGenerating},
	{Event: EventEndGeneration, Src: StateGenerating, Dst: StateIdle},
	{Event: EventBeginMaintenance, Src: StateIdle, Dst: StateMaintaining},
	{Event: EventEndMaintenance, Src: StateMaintaining, Dst: StateIdle},
}
