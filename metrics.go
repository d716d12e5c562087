package colgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational
// metrics. Implement it to integrate with monitoring systems.
type MetricsCollector interface {
	// RecordCreateTable is called after each CreateTable.
	RecordCreateTable(duration time.Duration, err error)

	// RecordWrite is called after each Write. rows is the batch size.
	RecordWrite(rows int, duration time.Duration, err error)

	// RecordRead is called after each Read. keys is the number of keys
	// requested, found the number resolved.
	RecordRead(keys, found int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCreateTable(time.Duration, error)  {}
func (NoopMetricsCollector) RecordWrite(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordRead(int, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	CreateTableCount atomic.Int64
	CreateTableErrs  atomic.Int64
	WriteCount       atomic.Int64
	WriteErrs        atomic.Int64
	WriteRows        atomic.Int64
	WriteTotalNanos  atomic.Int64
	ReadCount        atomic.Int64
	ReadErrs         atomic.Int64
	ReadKeys         atomic.Int64
	ReadFound        atomic.Int64
	ReadTotalNanos   atomic.Int64
}

func (m *BasicMetricsCollector) RecordCreateTable(d time.Duration, err error) {
	m.CreateTableCount.Add(1)
	if err != nil {
		m.CreateTableErrs.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordWrite(rows int, d time.Duration, err error) {
	m.WriteCount.Add(1)
	m.WriteTotalNanos.Add(int64(d))
	if err != nil {
		m.WriteErrs.Add(1)
		return
	}
	m.WriteRows.Add(int64(rows))
}

func (m *BasicMetricsCollector) RecordRead(keys, found int, d time.Duration, err error) {
	m.ReadCount.Add(1)
	m.ReadTotalNanos.Add(int64(d))
	m.ReadKeys.Add(int64(keys))
	if err != nil {
		m.ReadErrs.Add(1)
		return
	}
	m.ReadFound.Add(int64(found))
}
