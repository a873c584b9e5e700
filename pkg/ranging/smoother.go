package ranging

// Window is a fixed-size moving average. Every sample carries equal weight
// and the oldest is evicted once the window is full.
type Window struct {
	values []float64
	size   int
	mean   float64
}

// NewWindow creates a window holding up to size samples
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{values: make([]float64, 0, size), size: size}
}

// Add inserts a sample and returns the mean of the current window
func (w *Window) Add(value float64) float64 {
	if len(w.values) == w.size {
		copy(w.values, w.values[1:])
		w.values = w.values[:w.size-1]
	}
	w.values = append(w.values, value)

	sum := 0.0
	for _, v := range w.values {
		sum += v
	}
	w.mean = sum / float64(len(w.values))
	return w.mean
}

// Mean returns the current average, 0 for an empty window
func (w *Window) Mean() float64 {
	return w.mean
}

// Len returns the number of samples held
func (w *Window) Len() int {
	return len(w.values)
}

// Reset empties the window
func (w *Window) Reset() {
	w.values = w.values[:0]
	w.mean = 0
}

// Smoother keeps one window per link
type Smoother struct {
	windows [numLinks]*Window
}

// NewSmoother creates a smoother with the given window size per link
func NewSmoother(size int) *Smoother {
	s := &Smoother{}
	for i := range s.windows {
		s.windows[i] = NewWindow(size)
	}
	return s
}

// Add feeds one accepted sample pair and returns the smoothed pair
func (s *Smoother) Add(b, c Sample) Pair {
	return Pair{
		Round: b.Round,
		B:     s.windows[LinkB].Add(b.Meters),
		C:     s.windows[LinkC].Add(c.Meters),
	}
}

// Window returns the window for a link
func (s *Smoother) Window(link Link) *Window {
	return s.windows[link]
}

// Reset clears every window
func (s *Smoother) Reset() {
	for _, w := range s.windows {
		w.Reset()
	}
}
