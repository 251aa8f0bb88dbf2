package membership

// Observer receives rebuild signals. Calls come from the rebuilding goroutine.
type Observer interface {
	OnLoadingStarted()
	OnProgress(current, total int) // playlists finished / playlists to load
	OnReady(snapshot *Snapshot)    // READY or PARTIAL snapshot was published
	OnError(err error)
	OnCancelled()
}

// NoOpObserver discards rebuild signals (for tests and batch commands).
type NoOpObserver struct{}

func (NoOpObserver) OnLoadingStarted() {}
func (NoOpObserver) OnProgress(int, int) {}
func (NoOpObserver) OnReady(*Snapshot) {}
func (NoOpObserver) OnError(error) {}
func (NoOpObserver) OnCancelled() {}
