package tasks

// Sink receives transport callbacks for one transfer. Calls may arrive on any goroutine.
type Sink interface {
	Progress(written, expected int64)
	Finished(tempPath string)
	Failed(err error)
}

// Transfer controls one running download.
type Transfer interface {
	Pause()
	Resume()
	Cancel()
}

// Transport starts downloads. Begin must not block on the transfer itself.
type Transport interface {
	Begin(url string, sink Sink) (Transfer, error)
}
