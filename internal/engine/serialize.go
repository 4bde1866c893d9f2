// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/invowk/scriptc/pkg/artifact"
)

// serialized admits one compile or execute call at a time.
type serialized struct {
	inner Engine
	sem   *semaphore.Weighted
}

// Serialize wraps e so that at most one CompileToBytecode or ExecuteBytecode
// call runs at a time. Waiting callers give up when their context ends.
func Serialize(e Engine) Engine {
	if s, ok := e.(*serialized); ok {
		return s
	}
	return &serialized{inner: e, sem: semaphore.NewWeighted(1)}
}

func (s *serialized) CompileToBytecode(ctx context.Context, source string) ([]byte, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	return s.inner.CompileToBytecode(ctx, source)
}

func (s *serialized) ExecuteBytecode(ctx context.Context, payload []byte, io IO) (*Result, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	return s.inner.ExecuteBytecode(ctx, payload, io)
}

func (s *serialized) VersionTag() artifact.VersionTag {
	return s.inner.VersionTag()
}

// Close waits for an in-flight call to finish before closing the inner engine.
func (s *serialized) Close() error {
	if err := s.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer s.sem.Release(1)

	return s.inner.Close()
}
