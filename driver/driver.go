// Package driver exposes HFQL executors through database/sql under the
// driver name "hfql".
//
// An executor is registered under an engine name, which is then used as the
// data source name:
//
//	driver.Register("fhir", exec)
//	db, err := sql.Open("hfql", "fhir")
package driver

import (
	"database/sql"
	gosqldriver "database/sql/driver"
	"errors"
	"fmt"
	"sync"

	"github.com/omniql-engine/hfql/engine/executor"
)

// DriverName is the name used to register the driver with database/sql.
const DriverName = "hfql"

var (
	// ErrUnknownEngine is returned when a DSN names no registered engine.
	ErrUnknownEngine = errors.New("hfql: unknown engine")

	// ErrNotSupported is returned for statements and transactions, which HFQL lacks.
	ErrNotSupported = errors.New("hfql: operation not supported")
)

var (
	registerOnce sync.Once
	mu           sync.RWMutex
	engines      = map[string]*executor.Executor{}
)

// Register makes exec available to sql.Open under name, replacing any
// engine already registered with that name.
func Register(name string, exec *executor.Executor) {
	registerOnce.Do(func() {
		sql.Register(DriverName, &Driver{})
	})
	mu.Lock()
	defer mu.Unlock()
	engines[name] = exec
}

// Unregister removes an engine. Open connections keep working.
func Unregister(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(engines, name)
}

func lookup(name string) (*executor.Executor, error) {
	mu.RLock()
	defer mu.RUnlock()
	exec, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	return exec, nil
}

// Driver implements database/sql/driver.Driver.
type Driver struct{}

// Open returns a connection to the engine registered under name.
func (d *Driver) Open(name string) (gosqldriver.Conn, error) {
	exec, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return &Conn{exec: exec}, nil
}

var _ gosqldriver.Driver = &Driver{}
