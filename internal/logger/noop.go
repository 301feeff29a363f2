package logger

type noOp struct{}

// NewNoOp returns a logger that discards everything
func NewNoOp() Interface {
	return noOp{}
}

func (noOp) Debug(string, ...any)    {}
func (noOp) Info(string, ...any)     {}
func (noOp) Warn(string, ...any)     {}
func (noOp) Error(string, ...any)    {}
func (n noOp) With(...any) Interface { return n }
func (noOp) Sync() error             { return nil }
