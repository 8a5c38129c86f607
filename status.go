package tilestage

// Status is a diagnostics snapshot of the world.
type Status struct {
	Initialized    bool
	EntityCount    int
	CachedTextures int
	ChunkCount     int
	PendingChunks  int
	CanvasWidth    int
	CanvasHeight   int
	AspectRatio    float64
	LoadingAssets  bool
}

// Status returns a snapshot of the world's state. Safe to call before a map
// is loaded.
func (w *World) Status() Status {
	s := Status{
		Initialized:    w.initialized,
		EntityCount:    w.sprites.Len(),
		CachedTextures: w.reg.CachedTextures(),
		ChunkCount:     w.chunks.Len(),
		PendingChunks:  w.chunks.Pending(),
		CanvasWidth:    w.screenW,
		CanvasHeight:   w.screenH,
		LoadingAssets:  w.loader.Busy(),
	}
	if w.screenH > 0 {
		s.AspectRatio = float64(w.screenW) / float64(w.screenH)
	}
	return s
}
