package blobsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/keeptree/pkg/provider"
	"github.com/3leaps/keeptree/pkg/tree"
)

func newTestClient(t *testing.T, opts ...Option) (*Client, *memStore, billy.Filesystem) {
	t.Helper()
	store := newMemStore()
	fsys := memfs.New()
	all := append([]Option{WithStore(store), WithLocalFS(fsys)}, opts...)
	c, err := New(context.Background(), Config{ConnectionString: "memory://", Container: "box"}, all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, store, fsys
}

func TestNew_ConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"missing connection", Config{Container: "box"}, "ConnectionString"},
		{"blank connection", Config{ConnectionString: "  ", Container: "box"}, "ConnectionString"},
		{"missing container", Config{ConnectionString: "file:///tmp"}, "Container"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg, WithStore(newMemStore()))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNew_OpensStoreFromConnection(t *testing.T) {
	base := t.TempDir()
	c, err := New(context.Background(), Config{ConnectionString: "file://" + base, Container: "box"})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "box", c.Container())
	require.NoError(t, c.EnsurePath(context.Background(), "a/b", true))
}

func TestNew_BadConnection(t *testing.T) {
	_, err := New(context.Background(), Config{ConnectionString: "gopher://x", Container: "box"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open store")
}

func TestEnsurePath(t *testing.T) {
	ctx := context.Background()

	t.Run("creates container and placeholder", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		require.NoError(t, c.EnsurePath(ctx, "/docs/2024/", true))
		assert.True(t, store.container)
		assert.Equal(t, []string{"docs/2024/.keep"}, store.keys())
	})

	t.Run("is idempotent", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		require.NoError(t, c.EnsurePath(ctx, "docs", true))
		require.NoError(t, c.EnsurePath(ctx, "docs", true))
		assert.Equal(t, []string{"docs/.keep"}, store.keys())
		assert.Len(t, store.callsWith("CreateContainer"), 2)
	})

	t.Run("does not overwrite an existing placeholder", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		store.put("docs/.keep")
		store.objects["docs/.keep"] = []byte("marker")

		require.NoError(t, c.EnsurePath(ctx, "docs", true))
		assert.Equal(t, []byte("marker"), store.objects["docs/.keep"])
	})

	t.Run("without placeholders only ensures container", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		require.NoError(t, c.EnsurePath(ctx, "docs", false))
		assert.True(t, store.container)
		assert.Empty(t, store.keys())
	})

	t.Run("empty prefix writes nothing", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		require.NoError(t, c.EnsurePath(ctx, "//", true))
		assert.Empty(t, store.keys())
		assert.Empty(t, store.callsWith("PutObject"))
	})

	t.Run("container errors propagate", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		store.failOn["CreateContainer "] = &provider.ProviderError{Op: "CreateContainer", Err: provider.ErrAccessDenied}
		err := c.EnsurePath(ctx, "docs", true)
		require.Error(t, err)
		assert.True(t, provider.IsAccessDenied(err))
	})

	t.Run("placeholder errors propagate", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		store.failOn["PutObject docs/.keep"] = &provider.ProviderError{Op: "PutObject", Err: provider.ErrThrottled}
		err := c.EnsurePath(ctx, "docs", true)
		require.Error(t, err)
		assert.True(t, provider.IsThrottled(err))
	})
}

func TestEnsureTree(t *testing.T) {
	ctx := context.Background()
	spec := tree.Spec{
		tree.Dir("a", tree.Dir("b"), tree.Dir("c")),
		tree.Dir("d"),
	}

	t.Run("placeholders at every leaf", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		require.NoError(t, c.EnsureTree(ctx, "/root/", spec, true))
		assert.Equal(t, []string{"PutObject root/a/b/.keep", "PutObject root/a/c/.keep", "PutObject root/d/.keep"},
			store.callsWith("PutObject"))
	})

	t.Run("no placeholders", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		require.NoError(t, c.EnsureTree(ctx, "root", spec, false))
		assert.True(t, store.container)
		assert.Empty(t, store.keys())
	})

	t.Run("empty spec and base writes nothing", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		require.NoError(t, c.EnsureTree(ctx, "", tree.Spec{}, true))
		assert.Empty(t, store.keys())
	})

	t.Run("empty spec with base marks base", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		require.NoError(t, c.EnsureTree(ctx, "base", tree.Spec{}, true))
		assert.Equal(t, []string{"base/.keep"}, store.keys())
	})

	t.Run("structural error", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		err := c.EnsureTree(ctx, "", tree.Spec{{Name: ""}}, true)
		require.Error(t, err)
		assert.True(t, tree.IsStructural(err))
		assert.Empty(t, store.keys())
	})
}

func TestCreateLocalTree(t *testing.T) {
	c, store, fsys := newTestClient(t)
	spec := tree.Spec{tree.Dir("a", tree.Dir("b")), tree.Dir("c")}

	require.NoError(t, c.CreateLocalTree(context.Background(), "/work/out", spec))

	for _, dir := range []string{"/work/out", "/work/out/a/b", "/work/out/c"} {
		fi, err := fsys.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, fi.IsDir(), dir)
	}
	assert.Empty(t, store.calls)
}

func TestCreateLocalTree_Canceled(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.CreateLocalTree(ctx, "/x", tree.Spec{}), context.Canceled)
}

func TestCreateLocalTree_WithoutClient(t *testing.T) {
	fsys := memfs.New()
	spec := tree.Spec{tree.Dir("a", tree.Dir("b")), tree.Dir("c")}

	require.NoError(t, CreateLocalTree(context.Background(), fsys, "/work", spec))
	for _, dir := range []string{"/work", "/work/a/b", "/work/c"} {
		fi, err := fsys.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, fi.IsDir())
	}
}

func TestDeleteFile(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		store.put("a/b.txt", "a/c.txt")
		require.NoError(t, c.DeleteFile(ctx, " a/b.txt "))
		assert.Equal(t, []string{"a/c.txt"}, store.keys())
	})

	t.Run("missing is not an error", func(t *testing.T) {
		c, _, _ := newTestClient(t)
		assert.NoError(t, c.DeleteFile(ctx, "nope"))
	})

	t.Run("empty name", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		err := c.DeleteFile(ctx, "   ")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Empty(t, store.calls)
	})

	t.Run("slashes are stripped", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		store.put("a/b", "a/c")
		require.NoError(t, c.DeleteFile(ctx, "/a/b/"))
		assert.Equal(t, []string{"a/c"}, store.keys())
		assert.Equal(t, []string{"DeleteObject a/b"}, store.callsWith("DeleteObject"))
	})

	t.Run("slash only", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		for _, name := range []string{"/", "//", " / "} {
			err := c.DeleteFile(ctx, name)
			require.Error(t, err, name)
			assert.ErrorIs(t, err, ErrValidation)
		}
		assert.Empty(t, store.calls)
	})

	t.Run("other errors propagate", func(t *testing.T) {
		c, store, _ := newTestClient(t)
		store.failOn["DeleteObject x"] = &provider.ProviderError{Op: "DeleteObject", Err: provider.ErrAccessDenied}
		assert.True(t, provider.IsAccessDenied(c.DeleteFile(ctx, "x")))
	})
}

func TestRateLimit(t *testing.T) {
	c, store, _ := newTestClient(t, WithRateLimit(20))
	require.NotNil(t, c.limiter)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.EnsurePath(context.Background(), "a", true))
	}
	// Burst of one: six calls need at least five 50ms intervals.
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Len(t, store.calls, 6)
}

func TestRateLimit_Canceled(t *testing.T) {
	c, store, _ := newTestClient(t, WithRateLimit(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.EnsurePath(ctx, "a", true))
	assert.Empty(t, store.calls)
}
