package tilestage

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
)

// AnimIdle is the animation every catalog must define. Unknown requests fall
// back to it.
const AnimIdle = "idle"

// Names of the animations in DefaultCatalog.
const (
	AnimWalk        = "walk"
	AnimSit         = "sit"
	AnimPhone       = "phone"
	AnimWave        = "wave"
	AnimInteract    = "interact"
	AnimSitComputer = "sit_computer"
)

// LoopMode selects what happens after an animation's last frame.
type LoopMode uint8

const (
	LoopWrap     LoopMode = iota // wrap to frame 0
	LoopHold                     // clamp at the last frame
	LoopSubrange                 // jump back to Start
)

// LoopPolicy is a tagged variant: Start and End are only meaningful for
// LoopSubrange.
type LoopPolicy struct {
	Mode  LoopMode
	Start int
	End   int
}

// Loop wraps to the first frame.
func Loop() LoopPolicy { return LoopPolicy{Mode: LoopWrap} }

// PlayOnceHold plays through once and holds the last frame.
func PlayOnceHold() LoopPolicy { return LoopPolicy{Mode: LoopHold} }

// LoopSection plays from frame 0 and then cycles frames start..end.
func LoopSection(start, end int) LoopPolicy {
	return LoopPolicy{Mode: LoopSubrange, Start: start, End: end}
}

// next returns the frame after frame for an animation of frameCount frames.
func (p LoopPolicy) next(frame, frameCount int) int {
	last := frameCount - 1
	switch p.Mode {
	case LoopHold:
		if frame >= last {
			return last
		}
		return frame + 1
	case LoopSubrange:
		if frame == p.End || frame >= last {
			return p.Start
		}
		return frame + 1
	default:
		if frame >= last {
			return 0
		}
		return frame + 1
	}
}

// DirectionOffset is the sheet position of frame 0 for one facing. Frames
// follow horizontally at FrameWidth intervals.
type DirectionOffset struct {
	Direction Direction
	X, Y      int
}

// AnimationDef is a static animation description.
type AnimationDef struct {
	Name          string
	FrameCount    int
	FrameDuration float64 // seconds
	Loop          LoopPolicy
	FrameWidth    int
	FrameHeight   int
	// Directions lists the facings this animation supports. The first entry
	// is the fallback for facings it does not define.
	Directions []DirectionOffset
}

// HasDirection reports whether the animation declares dir.
func (d *AnimationDef) HasDirection(dir Direction) bool {
	for _, o := range d.Directions {
		if o.Direction == dir {
			return true
		}
	}
	return false
}

// offset returns the sheet offset for dir, falling back to the first
// declared direction.
func (d *AnimationDef) offset(dir Direction) DirectionOffset {
	for _, o := range d.Directions {
		if o.Direction == dir {
			return o
		}
	}
	return d.Directions[0]
}

// FrameRect returns the sheet sub-rectangle of frame for dir.
func (d *AnimationDef) FrameRect(dir Direction, frame int) image.Rectangle {
	o := d.offset(dir)
	x := o.X + frame*d.FrameWidth
	return image.Rect(x, o.Y, x+d.FrameWidth, o.Y+d.FrameHeight)
}

func (d *AnimationDef) validate() error {
	switch {
	case d.Name == "":
		return errors.New("animation without name")
	case d.FrameCount <= 0:
		return fmt.Errorf("animation %q: frame count %d must be positive", d.Name, d.FrameCount)
	case d.FrameDuration <= 0:
		return fmt.Errorf("animation %q: frame duration %g must be positive", d.Name, d.FrameDuration)
	case d.FrameWidth <= 0 || d.FrameHeight <= 0:
		return fmt.Errorf("animation %q: frame size must be positive", d.Name)
	case len(d.Directions) == 0:
		return fmt.Errorf("animation %q: no directions", d.Name)
	}
	if d.Loop.Mode == LoopSubrange {
		l := d.Loop
		if l.Start < 0 || l.Start > l.End || l.End >= d.FrameCount {
			return fmt.Errorf("animation %q: loop section %d..%d outside %d frames", d.Name, l.Start, l.End, d.FrameCount)
		}
	}
	return nil
}

// Catalog is the static table of animations. Never mutated after creation.
type Catalog struct {
	defs map[string]*AnimationDef
}

// NewCatalog validates defs and builds a catalog. An "idle" animation is
// required because it is the fallback for unknown requests.
func NewCatalog(defs ...AnimationDef) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]*AnimationDef, len(defs))}
	for i := range defs {
		d := defs[i]
		if err := d.validate(); err != nil {
			return nil, fmt.Errorf("tilestage: %w", err)
		}
		if _, dup := c.defs[d.Name]; dup {
			return nil, fmt.Errorf("tilestage: duplicate animation %q", d.Name)
		}
		c.defs[d.Name] = &d
	}
	if _, ok := c.defs[AnimIdle]; !ok {
		return nil, fmt.Errorf("tilestage: catalog has no %q animation", AnimIdle)
	}
	return c, nil
}

// Lookup returns the animation named name.
func (c *Catalog) Lookup(name string) (*AnimationDef, bool) {
	d, ok := c.defs[name]
	return d, ok
}

// Resolve returns the animation for a collaborator-supplied name. Unknown
// names resolve to idle and report false so the caller can log it.
func (c *Catalog) Resolve(name string) (*AnimationDef, bool) {
	if d, ok := c.defs[name]; ok {
		return d, true
	}
	return c.defs[AnimIdle], false
}

// Len returns the number of animations.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// Standard character sheet: 48x96 frames, one row per facing.
const (
	charFrameW = 48
	charFrameH = 96
)

func fourWay(y0 int) []DirectionOffset {
	return []DirectionOffset{
		{Direction: DirDown, X: 0, Y: y0},
		{Direction: DirUp, X: 0, Y: y0 + charFrameH},
		{Direction: DirLeft, X: 0, Y: y0 + 2*charFrameH},
		{Direction: DirRight, X: 0, Y: y0 + 3*charFrameH},
	}
}

// DefaultCatalog returns the animations of the standard character sheet.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		AnimationDef{Name: AnimIdle, FrameCount: 6, FrameDuration: 0.15, Loop: Loop(),
			FrameWidth: charFrameW, FrameHeight: charFrameH, Directions: fourWay(0)},
		AnimationDef{Name: AnimWalk, FrameCount: 6, FrameDuration: 0.1, Loop: Loop(),
			FrameWidth: charFrameW, FrameHeight: charFrameH, Directions: fourWay(4 * charFrameH)},
		AnimationDef{Name: AnimSit, FrameCount: 6, FrameDuration: 0.15, Loop: Loop(),
			FrameWidth: charFrameW, FrameHeight: charFrameH, Directions: fourWay(8 * charFrameH)},
		AnimationDef{Name: AnimInteract, FrameCount: 6, FrameDuration: 0.1, Loop: PlayOnceHold(),
			FrameWidth: charFrameW, FrameHeight: charFrameH, Directions: fourWay(12 * charFrameH)},
		AnimationDef{Name: AnimWave, FrameCount: 8, FrameDuration: 0.1, Loop: PlayOnceHold(),
			FrameWidth: charFrameW, FrameHeight: charFrameH,
			Directions: []DirectionOffset{{Direction: DirDown, X: 0, Y: 16 * charFrameH}}},
		AnimationDef{Name: AnimPhone, FrameCount: 12, FrameDuration: 0.12, Loop: LoopSection(3, 8),
			FrameWidth: charFrameW, FrameHeight: charFrameH,
			Directions: []DirectionOffset{{Direction: DirDown, X: 0, Y: 17 * charFrameH}}},
		AnimationDef{Name: AnimSitComputer, FrameCount: 6, FrameDuration: 0.2, Loop: Loop(),
			FrameWidth: charFrameW, FrameHeight: charFrameH,
			Directions: []DirectionOffset{{Direction: DirUp, X: 0, Y: 18 * charFrameH}}},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// --- JSON catalog ---

type jsonDirection struct {
	Direction string `json:"direction"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

type jsonLoop struct {
	Mode  string `json:"mode"` // "loop", "once", "section"
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type jsonAnimation struct {
	Name          string          `json:"name"`
	Frames        int             `json:"frames"`
	FrameDuration float64         `json:"frameDuration"`
	Loop          jsonLoop        `json:"loop"`
	FrameWidth    int             `json:"frameWidth"`
	FrameHeight   int             `json:"frameHeight"`
	Directions    []jsonDirection `json:"directions"`
}

// LoadCatalog parses a JSON animation table:
//
//	{"animations": [{"name": "idle", "frames": 6, "frameDuration": 0.15,
//	  "loop": {"mode": "loop"}, "frameWidth": 48, "frameHeight": 96,
//	  "directions": [{"direction": "down", "x": 0, "y": 0}]}]}
func LoadCatalog(jsonData []byte) (*Catalog, error) {
	var doc struct {
		Animations []jsonAnimation `json:"animations"`
	}
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, fmt.Errorf("tilestage: failed to parse animation catalog: %w", err)
	}
	defs := make([]AnimationDef, 0, len(doc.Animations))
	for _, a := range doc.Animations {
		def := AnimationDef{
			Name:          a.Name,
			FrameCount:    a.Frames,
			FrameDuration: a.FrameDuration,
			FrameWidth:    a.FrameWidth,
			FrameHeight:   a.FrameHeight,
		}
		switch a.Loop.Mode {
		case "", "loop":
			def.Loop = Loop()
		case "once":
			def.Loop = PlayOnceHold()
		case "section":
			def.Loop = LoopSection(a.Loop.Start, a.Loop.End)
		default:
			return nil, fmt.Errorf("tilestage: animation %q: unknown loop mode %q", a.Name, a.Loop.Mode)
		}
		for _, jd := range a.Directions {
			dir, ok := ParseDirection(jd.Direction)
			if !ok {
				return nil, fmt.Errorf("tilestage: animation %q: unknown direction %q", a.Name, jd.Direction)
			}
			def.Directions = append(def.Directions, DirectionOffset{Direction: dir, X: jd.X, Y: jd.Y})
		}
		defs = append(defs, def)
	}
	return NewCatalog(defs...)
}

// AnimationState is the per-entity playback record.
type AnimationState struct {
	Animation string
	Direction Direction
	Frame     int
	Elapsed   float64
}

// advance accumulates dt and steps frames according to def's loop policy.
// Reports whether the frame index changed.
func (s *AnimationState) advance(def *AnimationDef, dt float64) bool {
	start := s.Frame
	s.Elapsed += dt
	for s.Elapsed >= def.FrameDuration {
		s.Elapsed -= def.FrameDuration
		if def.Loop.Mode == LoopHold && s.Frame >= def.FrameCount-1 {
			s.Frame = def.FrameCount - 1
			s.Elapsed = 0
			break
		}
		s.Frame = def.Loop.next(s.Frame, def.FrameCount)
	}
	return s.Frame != start
}
