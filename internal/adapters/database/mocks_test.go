package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockDB is a mock implementation of DB for testing
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDB) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDB) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	ret := m.Called(ctx, query, args)
	return ret.Get(0).(Row)
}

func (m *MockDB) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	ret := m.Called(ctx, query, args)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(Rows), ret.Error(1)
}

func (m *MockDB) Exec(ctx context.Context, query string, args ...interface{}) error {
	ret := m.Called(ctx, query, args)
	return ret.Error(0)
}

// rowFunc adapts a scan function to Row
type rowFunc func(dest ...interface{}) error

func (f rowFunc) Scan(dest ...interface{}) error { return f(dest...) }

func boolRow(v bool) Row {
	return rowFunc(func(dest ...interface{}) error {
		*(dest[0].(*bool)) = v
		return nil
	})
}

func bytesRow(payload []byte, err error) Row {
	return rowFunc(func(dest ...interface{}) error {
		if err != nil {
			return err
		}
		*(dest[0].(*[]byte)) = payload
		return nil
	})
}

// fakeRows iterates over JSON payloads
type fakeRows struct {
	payloads [][]byte
	pos      int
	err      error
	closed   bool
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.payloads) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	*(dest[0].(*[]byte)) = r.payloads[r.pos-1]
	return nil
}

func (r *fakeRows) Err() error { return r.err }

func (r *fakeRows) Close() { r.closed = true }
