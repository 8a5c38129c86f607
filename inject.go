package tilestage

// InjectClick queues a synthetic press at the given screen coordinates. It
// is resolved exactly like a real press on the next tick, one injected
// event per tick.
func (w *World) InjectClick(x, y float64) {
	w.injectQueue = append(w.injectQueue, PointerEvent{X: x, Y: y})
}

// processInjectedInput pops one injected press onto the router's queue.
// Reports whether an event was consumed.
func (w *World) processInjectedInput() bool {
	if len(w.injectQueue) == 0 {
		return false
	}
	ev := w.injectQueue[0]
	copy(w.injectQueue, w.injectQueue[1:])
	w.injectQueue = w.injectQueue[:len(w.injectQueue)-1]
	w.input.PushPointer(ev)
	return true
}
