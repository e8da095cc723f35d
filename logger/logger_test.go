package logger

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestInitializeWithWriter_TeesJSON(t *testing.T) {
	w := &syncBuffer{}
	l, err := InitializeWithWriter("production", w)
	require.NoError(t, err)

	l.Info("order created", zap.String("order_id", "abc"))
	_ = l.Sync()

	assert.Contains(t, w.String(), `"order_id":"abc"`)
	assert.Contains(t, w.String(), `"msg":"order created"`)
}

func TestFromContext_AddsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := WithContext(context.Background(), "req-42")
	FromContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-42", logs.All()[0].ContextMap()[RequestIDKey])
}

func TestWithContext_PlainStringKeyDoesNotCollide(t *testing.T) {
	ctx := WithContext(context.Background(), "req-7")
	assert.Nil(t, ctx.Value(RequestIDKey))
	assert.Equal(t, "req-7", getRequestID(ctx))

	//lint:ignore SA1029 checks that a foreign string key is not picked up
	foreign := context.WithValue(context.Background(), RequestIDKey, "spoofed")
	assert.Empty(t, getRequestID(foreign))
}

func TestFromContext_NoRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	FromContext(context.Background(), base).Info("hello")

	require.Equal(t, 1, logs.Len())
	_, ok := logs.All()[0].ContextMap()[RequestIDKey]
	assert.False(t, ok)
}
