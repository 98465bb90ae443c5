package kafka

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// ErrMalformed marks a record that can never be handled. The consumer commits
// past it instead of stalling the partition.
var ErrMalformed = errors.New("kafka: malformed record")

// ProtoHandler decodes each record value into a fresh M before calling handle.
func ProtoHandler[M proto.Message](ctor func() M, handle func(context.Context, []byte, M) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		msg := ctor()
		if err := proto.Unmarshal(value, msg); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformed, msg.ProtoReflect().Descriptor().FullName(), err)
		}
		return handle(ctx, key, msg)
	}
}
