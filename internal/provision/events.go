package provision

import "github.com/maxdollinger/zapret.io/internal/manifest"

// Event is pushed to the progress sink while a batch executes.
type Event interface {
	event()
}

type BatchStart struct {
	BatchID string
	Total   int
}

type ItemProgress struct {
	Current int
	Total   int
	Name    string
	Phase   manifest.Category
}

type BatchError struct {
	Message string
}

type BatchComplete struct{}

func (BatchStart) event()    {}
func (ItemProgress) event()  {}
func (BatchError) event()    {}
func (BatchComplete) event() {}

// emit never blocks. Events are dropped when the sink is full or nil.
func emit(sink chan<- Event, ev Event) {
	if sink == nil {
		return
	}
	select {
	case sink <- ev:
	default:
	}
}
