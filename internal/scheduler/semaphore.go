package scheduler

// Semaphore caps how many jobs of one category run at once. Backed by a
// buffered channel so TryAcquire never blocks a scheduler tick.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a semaphore with n slots. n below 1 is raised to 1.
func NewSemaphore(n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	return &Semaphore{slots: make(chan struct{}, n)}
}

// TryAcquire claims a slot if one is free.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a slot claimed by TryAcquire.
func (s *Semaphore) Release() {
	<-s.slots
}
