package tilestage

import (
	"encoding/json"
	"fmt"
)

// scriptStep is one line of a test script. Which fields matter depends on
// Action.
type scriptStep struct {
	Action string  `json:"action"`
	Label  string  `json:"label,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Frames int     `json:"frames,omitempty"`

	Entity    uint32  `json:"entity,omitempty"`
	Animation string  `json:"animation,omitempty"`
	Path      []Vec2  `json:"path,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Seconds   float32 `json:"seconds,omitempty"`
}

type scriptAction struct {
	check func(st scriptStep) error
	run   func(r *TestRunner, w *World, st scriptStep) error
}

var scriptActions = map[string]scriptAction{
	"click": {run: func(_ *TestRunner, w *World, st scriptStep) error {
		w.InjectClick(st.X, st.Y)
		return nil
	}},
	"wait": {run: func(r *TestRunner, _ *World, st scriptStep) error {
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this tick counts as one
		}
		return nil
	}},
	"screenshot": {run: func(_ *TestRunner, w *World, st scriptStep) error {
		w.Screenshot(st.Label)
		return nil
	}},
	"animate": {
		check: func(st scriptStep) error {
			if st.Animation == "" {
				return fmt.Errorf("animation name required")
			}
			return nil
		},
		run: func(_ *TestRunner, w *World, st scriptStep) error {
			return w.sprites.UpdateCharacterAnimation(st.Entity, st.Animation)
		},
	},
	"follow": {run: func(_ *TestRunner, w *World, st scriptStep) error {
		return w.SetFollowTarget(st.Entity)
	}},
	"walk": {
		check: func(st scriptStep) error {
			if len(st.Path) == 0 || st.Speed <= 0 {
				return fmt.Errorf("walk needs a path and a positive speed")
			}
			return nil
		},
		run: func(_ *TestRunner, w *World, st scriptStep) error {
			return w.sprites.FollowPath(st.Entity, st.Path, st.Speed)
		},
	},
	"scroll": {
		check: func(st scriptStep) error {
			if st.Seconds <= 0 {
				return fmt.Errorf("scroll needs positive seconds")
			}
			return nil
		},
		run: func(_ *TestRunner, w *World, st scriptStep) error {
			w.camera.ScrollTo(st.X, st.Y, st.Seconds, nil)
			return nil
		},
	},
}

// TestRunner plays a scripted session against a World one step per tick:
// injected clicks, waits, animation and camera changes, path walks and
// screenshots. Attach it with SetTestRunner.
type TestRunner struct {
	steps     []scriptStep
	cursor    int
	waitCount int
	done      bool
}

// LoadTestScript parses a JSON test script:
//
//	{"steps": [{"action": "click", "x": 130, "y": 97},
//	           {"action": "wait", "frames": 30},
//	           {"action": "walk", "entity": 1, "path": [{"x": 96, "y": 48}], "speed": 90},
//	           {"action": "scroll", "x": 480, "y": 320, "seconds": 1.5},
//	           {"action": "animate", "entity": 1, "animation": "wave"},
//	           {"action": "screenshot", "label": "after-click"}]}
//
// Clicks are in screen coordinates, scroll targets in world coordinates.
func LoadTestScript(data []byte) (*TestRunner, error) {
	var script struct {
		Steps []scriptStep `json:"steps"`
	}
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("tilestage: parse test script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("tilestage: parse test script: no steps")
	}
	for i, st := range script.Steps {
		a, ok := scriptActions[st.Action]
		if !ok {
			return nil, fmt.Errorf("tilestage: parse test script: step %d: unknown action %q", i, st.Action)
		}
		if a.check != nil {
			if err := a.check(st); err != nil {
				return nil, fmt.Errorf("tilestage: parse test script: step %d (%s): %w", i, st.Action, err)
			}
		}
	}
	return &TestRunner{steps: script.Steps}, nil
}

// SetTestRunner attaches runner to the world. It steps at the start of
// every tick, before input is drained.
func (w *World) SetTestRunner(runner *TestRunner) {
	w.testRunner = runner
}

// Done reports whether every step has run.
func (r *TestRunner) Done() bool {
	return r.done
}

func (r *TestRunner) step(w *World) {
	if r.done || len(w.injectQueue) > 0 {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++
	if err := scriptActions[st.Action].run(r, w, st); err != nil {
		// A failing step is reported and skipped; the script keeps going.
		w.log.WithError(err).WithField("step", r.cursor-1).Warnf("test script: %s", st.Action)
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 && len(w.injectQueue) == 0 {
		r.done = true
	}
}
