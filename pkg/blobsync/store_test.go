package blobsync

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/3leaps/keeptree/pkg/provider"
)

// memStore is a flat in-memory provider.Store that records every call.
type memStore struct {
	mu        sync.Mutex
	container bool
	objects   map[string][]byte
	types     map[string]string
	calls     []string
	pageSize  int

	// failOn maps "Op key" to the error that call returns.
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		objects:  make(map[string][]byte),
		types:    make(map[string]string),
		failOn:   make(map[string]error),
		pageSize: 2,
	}
}

func (m *memStore) fail(op, key string) error {
	if err, ok := m.failOn[op+" "+key]; ok {
		return err
	}
	return nil
}

func (m *memStore) CreateContainer(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "CreateContainer")
	if err := m.fail("CreateContainer", ""); err != nil {
		return err
	}
	if m.container {
		return &provider.ProviderError{Op: "CreateContainer", Err: provider.ErrAlreadyExists}
	}
	m.container = true
	return nil
}

func (m *memStore) PutObject(ctx context.Context, key string, body io.Reader, size int64, opts provider.PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "PutObject "+key)
	if err := m.fail("PutObject", key); err != nil {
		return err
	}
	if _, ok := m.objects[key]; ok && !opts.Overwrite {
		return &provider.ProviderError{Op: "PutObject", Key: key, Err: provider.ErrAlreadyExists}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.types[key] = opts.ContentType
	return nil
}

func (m *memStore) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "DeleteObject "+key)
	if err := m.fail("DeleteObject", key); err != nil {
		return err
	}
	if _, ok := m.objects[key]; !ok {
		return &provider.ProviderError{Op: "DeleteObject", Key: key, Err: provider.ErrNotFound}
	}
	delete(m.objects, key)
	return nil
}

func (m *memStore) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "List "+opts.Prefix)
	if err := m.fail("List", opts.Prefix); err != nil {
		return nil, err
	}
	if !m.container {
		return nil, &provider.ProviderError{Op: "List", Err: provider.ErrContainerNotFound}
	}

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, opts.Prefix) && k > opts.ContinuationToken {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	res := &provider.ListResult{}
	if len(keys) > m.pageSize {
		keys = keys[:m.pageSize]
		res.IsTruncated = true
		res.ContinuationToken = keys[len(keys)-1]
	}
	for _, k := range keys {
		res.Objects = append(res.Objects, provider.ObjectSummary{Key: k, Size: int64(len(m.objects[k]))})
	}
	return res, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// callsWith returns the recorded calls starting with op.
func (m *memStore) callsWith(op string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if strings.HasPrefix(c, op) {
			out = append(out, c)
		}
	}
	return out
}

func (m *memStore) put(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.container = true
	for _, k := range keys {
		m.objects[k] = []byte("x")
	}
}
