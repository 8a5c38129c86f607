package ecs

import (
	"github.com/phanxgames/tilestage"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// OutcomeEventType is the Donburi event type for every interaction outcome.
var OutcomeEventType = events.NewEventType[tilestage.Outcome]()

// MoveTo is published for ground clicks. CancelQueuedAction mirrors the
// outcome flag; the subscriber owning the action queue decides what to drop.
type MoveTo struct {
	X, Y               float64
	CancelQueuedAction bool
}

// MoveToEventType is the Donburi event type for ground clicks.
var MoveToEventType = events.NewEventType[MoveTo]()

type donburiHandler struct {
	world donburi.World
}

// NewDonburiHandler creates an OutcomeHandler backed by a Donburi world.
// Events are queued and delivered by ProcessEvents / ProcessAllEvents.
func NewDonburiHandler(world donburi.World) tilestage.OutcomeHandler {
	return &donburiHandler{world: world}
}

func (h *donburiHandler) HandleOutcome(o tilestage.Outcome) {
	OutcomeEventType.Publish(h.world, o)
	if o.Kind == tilestage.OutcomeGround {
		MoveToEventType.Publish(h.world, MoveTo{X: o.World.X, Y: o.World.Y, CancelQueuedAction: o.CancelQueuedAction})
	}
}
