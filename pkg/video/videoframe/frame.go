package videoframe

type Dimensions struct {
	W, H int
}

func (d Dimensions) Empty() bool {
	return d.W <= 0 || d.H <= 0
}

type NoCloser interface {
	DataRef() interface{}
	Dimensions() Dimensions
}

// Frame is a single decoded picture. Clone returns an independent deep
// copy which the caller must close.
type Frame interface {
	NoCloser
	Clone() Frame
	Close()
}
