//go:build !govips || !cgo

package pipeline

func Startup() error {
	return nil
}

func Shutdown() {}

func NewCodec() (Codec, error) {
	return stdCodec{}, nil
}
