package loader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]any
	args  []map[string]any
}

func (r *recorder) batch(_ context.Context, parents []any, args map[string]any) ([]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]any(nil), parents...))
	r.args = append(r.args, args)

	out := make([]any, len(parents))
	for i, p := range parents {
		out[i] = p.(int) * 10
	}
	return out, nil
}

func TestLoader_OneCallPerTick(t *testing.T) {
	rec := &recorder{}
	l := NewScope().Loader("Post.author", rec.batch)
	ctx := context.Background()

	t1 := l.Load(ctx, 1, nil)
	t2 := l.Load(ctx, 2, nil)
	t3 := l.Load(ctx, 3, nil)

	v, err := t2()
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	v, _ = t1()
	assert.Equal(t, 10, v)
	v, _ = t3()
	assert.Equal(t, 30, v)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, []any{1, 2, 3}, rec.calls[0])
}

func TestLoader_SharesIdenticalKeys(t *testing.T) {
	rec := &recorder{}
	l := NewScope().Loader("Post.author", rec.batch)
	ctx := context.Background()

	a := l.Load(ctx, 1, map[string]any{"x": 1})
	b := l.Load(ctx, 1, map[string]any{"x": 1})
	c := l.Load(ctx, 2, map[string]any{"x": 1})

	va, _ := a()
	vb, _ := b()
	vc, _ := c()
	assert.Equal(t, 10, va)
	assert.Equal(t, 10, vb)
	assert.Equal(t, 20, vc)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, []any{1, 2}, rec.calls[0])

	again := l.Load(ctx, 2, map[string]any{"x": 1})
	v, _ := again()
	assert.Equal(t, 20, v)
	assert.Len(t, rec.calls, 1, "cached result must not trigger another batch")
}

func TestLoader_PartitionsByArgs(t *testing.T) {
	rec := &recorder{}
	l := NewScope().Loader("Post.comments", rec.batch)
	ctx := context.Background()

	first := l.Load(ctx, 1, map[string]any{"take": 1})
	second := l.Load(ctx, 2, map[string]any{"take": 5})
	third := l.Load(ctx, 3, map[string]any{"take": 1})

	_, _ = first()
	_, _ = second()
	_, _ = third()

	require.Len(t, rec.calls, 2)
	assert.Equal(t, []any{1, 3}, rec.calls[0])
	assert.Equal(t, map[string]any{"take": 1}, rec.args[0])
	assert.Equal(t, []any{2}, rec.calls[1])
}

func TestLoader_LengthMismatch(t *testing.T) {
	l := NewScope().Loader("bad", func(context.Context, []any, map[string]any) ([]any, error) {
		return []any{1}, nil
	})
	ctx := context.Background()

	a := l.Load(ctx, 1, nil)
	b := l.Load(ctx, 2, nil)

	_, err := a()
	assert.ErrorIs(t, err, ErrLengthMismatch)
	_, err = b()
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestLoader_BatchErrorReachesEveryKey(t *testing.T) {
	boom := errors.New("boom")
	l := NewScope().Loader("failing", func(context.Context, []any, map[string]any) ([]any, error) {
		return nil, boom
	})
	ctx := context.Background()

	thunks := []Thunk{l.Load(ctx, 1, nil), l.Load(ctx, 2, nil), l.Load(ctx, 3, nil)}
	for _, th := range thunks {
		_, err := th()
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)

		var batchErr *BatchError
		require.True(t, errors.As(err, &batchErr))
		assert.Equal(t, "failing", batchErr.Loader)
		assert.Equal(t, 3, batchErr.Size)
	}
}

func TestLoader_PanicBecomesError(t *testing.T) {
	l := NewScope().Loader("panics", func(context.Context, []any, map[string]any) ([]any, error) {
		panic("kaboom")
	})
	_, err := l.Load(context.Background(), 1, nil)()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestLoader_Concurrent(t *testing.T) {
	rec := &recorder{}
	l := NewScope().Loader("Post.author", rec.batch)
	ctx := context.Background()

	const n = 50
	thunks := make([]Thunk, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			thunks[i] = l.Load(ctx, i, nil)
		}(i)
	}
	wg.Wait()

	results := make([]any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := thunks[i]()
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, i*10, results[i])
	}
	total := 0
	for _, call := range rec.calls {
		total += len(call)
	}
	assert.Equal(t, n, total)
}

func TestScope(t *testing.T) {
	var flushes []int
	s := NewScope(WithFlushHook(func(_ string, size int) { flushes = append(flushes, size) }))
	rec := &recorder{}

	a := s.Loader("Post.author", rec.batch)
	b := s.Loader("Post.author", nil)
	assert.Same(t, a, b)
	assert.Equal(t, 1, s.Len())

	_, _ = a.Load(context.Background(), 1, nil)()
	assert.Equal(t, []int{1}, flushes)

	ctx := WithScope(context.Background(), s)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "null", Key(nil))
	assert.Equal(t, Key(map[string]any{"a": 1, "b": 2}), Key(map[string]any{"b": 2, "a": 1}))
	assert.NotEqual(t, Key(map[string]any{"a": 1}), Key(map[string]any{"a": 2}))
	assert.Contains(t, Key(make(chan int)), "chan")
}
