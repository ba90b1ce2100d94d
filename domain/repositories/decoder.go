package repositories

import "context"

// ContainerDecoder abstracts the external process that unpacks container
// formats the in-process decoder cannot parse (WebM/Opus). Implementations
// return 16 kHz mono float samples. An error means the payload could not be
// decoded; callers treat that as silence, never as a pipeline failure.
type ContainerDecoder interface {
	Decode(ctx context.Context, data []byte) ([]float32, error)
}
