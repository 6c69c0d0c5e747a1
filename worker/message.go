package worker

// Message is one event from the worker process: Output, Error or Exited.
type Message interface {
	message()
}

// Output is a line the worker wrote to stdout.
type Output struct {
	Text string
}

// Error is a line the worker wrote to stderr.
type Error struct {
	Text string
}

// Exited reports that the worker process ended. Code is -1 when the process
// was killed by a signal.
type Exited struct {
	Code int
	Err  error
}

func (Output) message() {}
func (Error) message()  {}
func (Exited) message() {}
