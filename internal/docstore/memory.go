package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Op names a store operation for fault injection.
type Op string

const (
	OpGet    Op = "get"
	OpList   Op = "list"
	OpQuery  Op = "query"
	OpSet    Op = "set"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// FaultFunc returns a non-nil error to make an operation fail.
type FaultFunc func(op Op, collection, key string) error

// Memory is an in-process Store. Transactions hold the store mutex for
// their whole duration and are rolled back when fn fails.
type Memory struct {
	mu    sync.Mutex
	docs  map[string]map[string]*Document
	now   func() time.Time
	fault FaultFunc
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]map[string]*Document),
		now:  time.Now,
	}
}

// SetClock replaces the clock used for document timestamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetFault installs a fault injector; nil removes it.
func (m *Memory) SetFault(fn FaultFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = fn
}

func (m *Memory) Close() {}

func (m *Memory) Get(ctx context.Context, collection, key string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(collection, key)
}

func (m *Memory) List(ctx context.Context, collection string) ([]*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(collection)
}

func (m *Memory) Query(ctx context.Context, collection, field string, value any) ([]*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query(collection, field, value)
}

func (m *Memory) Set(ctx context.Context, collection, key string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set(collection, key, data)
}

func (m *Memory) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.update(collection, key, fields)
}

func (m *Memory) Delete(ctx context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delete(collection, key)
}

// RunTransaction runs fn with exclusive access to the store.
func (m *Memory) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx DB) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]map[string]*Document, len(m.docs))
	for coll, docs := range m.docs {
		copied := make(map[string]*Document, len(docs))
		for k, d := range docs {
			copied[k] = d
		}
		snapshot[coll] = copied
	}

	if err := fn(ctx, memTx{m: m}); err != nil {
		m.docs = snapshot
		return err
	}
	return nil
}

func (m *Memory) injected(op Op, collection, key string) error {
	if m.fault == nil {
		return nil
	}
	return m.fault(op, collection, key)
}

func (m *Memory) get(collection, key string) (*Document, error) {
	if err := m.injected(OpGet, collection, key); err != nil {
		return nil, err
	}
	d, ok := m.docs[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(d), nil
}

func (m *Memory) list(collection string) ([]*Document, error) {
	if err := m.injected(OpList, collection, ""); err != nil {
		return nil, err
	}
	docs := m.docs[collection]
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*Document, 0, len(keys))
	for _, k := range keys {
		out = append(out, clone(docs[k]))
	}
	return out, nil
}

func (m *Memory) query(collection, field string, value any) ([]*Document, error) {
	if err := m.injected(OpQuery, collection, field); err != nil {
		return nil, err
	}
	want, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode query value: %w", err)
	}

	all, err := m.list(collection)
	if err != nil {
		return nil, err
	}
	var out []*Document
	for _, d := range all {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(d.Data, &fields); err != nil {
			continue
		}
		if got, ok := fields[field]; ok && bytes.Equal(compact(got), want) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) set(collection, key string, data any) error {
	if err := m.injected(OpSet, collection, key); err != nil {
		return err
	}
	raw, err := encode(data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]*Document)
	}
	now := m.now()
	m.docs[collection][key] = &Document{
		Collection: collection,
		Key:        key,
		Data:       append(json.RawMessage(nil), raw...),
		CreateTime: now,
		UpdateTime: now,
	}
	return nil
}

func (m *Memory) update(collection, key string, fields map[string]any) error {
	if err := m.injected(OpUpdate, collection, key); err != nil {
		return err
	}
	d, ok := m.docs[collection][key]
	if !ok {
		return ErrNotFound
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(d.Data, &merged); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	for name, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode field %s: %w", name, err)
		}
		merged[name] = raw
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	m.docs[collection][key] = &Document{
		Collection: collection,
		Key:        key,
		Data:       raw,
		CreateTime: d.CreateTime,
		UpdateTime: m.now(),
	}
	return nil
}

func (m *Memory) delete(collection, key string) error {
	if err := m.injected(OpDelete, collection, key); err != nil {
		return err
	}
	delete(m.docs[collection], key)
	return nil
}

// memTx runs operations while the owning Memory is already locked.
type memTx struct {
	m *Memory
}

func (t memTx) Get(ctx context.Context, collection, key string) (*Document, error) {
	return t.m.get(collection, key)
}

func (t memTx) List(ctx context.Context, collection string) ([]*Document, error) {
	return t.m.list(collection)
}

func (t memTx) Query(ctx context.Context, collection, field string, value any) ([]*Document, error) {
	return t.m.query(collection, field, value)
}

func (t memTx) Set(ctx context.Context, collection, key string, data any) error {
	return t.m.set(collection, key, data)
}

func (t memTx) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	return t.m.update(collection, key, fields)
}

func (t memTx) Delete(ctx context.Context, collection, key string) error {
	return t.m.delete(collection, key)
}

func clone(d *Document) *Document {
	c := *d
	c.Data = append(json.RawMessage(nil), d.Data...)
	return &c
}

func compact(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
