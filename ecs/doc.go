// Package ecs bridges tilestage interaction outcomes into a [Donburi] world.
//
// [NewDonburiHandler] returns a tilestage.OutcomeHandler that publishes every
// outcome to [OutcomeEventType]. Ground clicks are additionally published to
// [MoveToEventType] so movement systems can subscribe without filtering.
//
// Usage:
//
//	ecsWorld := donburi.NewWorld()
//	w, err := tilestage.NewWorld(cfg, assets, log, ecs.NewDonburiHandler(ecsWorld))
//	...
//	ecs.OutcomeEventType.Subscribe(ecsWorld, onOutcome)
//	// in the ECS update:
//	events.ProcessAllEvents(ecsWorld)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
