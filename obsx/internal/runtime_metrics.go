package internal

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var processStartTime = time.Now()

// EnableRuntimeMetrics registers goroutine, memory, GC and uptime
// instruments. Values are read on scrape.
//
// Metrics collected:
//   - process_runtime_go_goroutines
//   - process_runtime_go_memory_heap_bytes
//   - process_runtime_go_memory_stack_bytes
//   - process_runtime_go_memory_sys_bytes
//   - process_runtime_go_gc_count_total
//   - process_start_time_seconds
//   - process_uptime_seconds
func EnableRuntimeMetrics(ctx context.Context, meterProvider *sdkmetric.MeterProvider) error {
	meter := meterProvider.Meter("go.eggybyte.com/busnode/obsx/runtime")

	goroutines, err := meter.Int64ObservableGauge(
		"process_runtime_go_goroutines",
		metric.WithDescription("Number of goroutines that currently exist"),
		metric.WithUnit("{goroutine}"),
	)
	if err != nil {
		return err
	}

	heapBytes, err := meter.Int64ObservableGauge(
		"process_runtime_go_memory_heap_bytes",
		metric.WithDescription("Heap memory in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	stackBytes, err := meter.Int64ObservableGauge(
		"process_runtime_go_memory_stack_bytes",
		metric.WithDescription("Stack memory in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	sysBytes, err := meter.Int64ObservableGauge(
		"process_runtime_go_memory_sys_bytes",
		metric.WithDescription("Memory obtained from the OS in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	gcCount, err := meter.Int64ObservableCounter(
		"process_runtime_go_gc_count_total",
		metric.WithDescription("Total number of GC cycles completed"),
		metric.WithUnit("{gc}"),
	)
	if err != nil {
		return err
	}

	startTime, err := meter.Float64ObservableGauge(
		"process_start_time_seconds",
		metric.WithDescription("Start time of the process since unix epoch in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	uptime, err := meter.Float64ObservableGauge(
		"process_uptime_seconds",
		metric.WithDescription("Time since the process started in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			observer.ObserveInt64(goroutines, int64(runtime.NumGoroutine()))

			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			observer.ObserveInt64(heapBytes, int64(m.HeapAlloc))
			observer.ObserveInt64(stackBytes, int64(m.StackInuse))
			observer.ObserveInt64(sysBytes, int64(m.Sys))
			observer.ObserveInt64(gcCount, int64(m.NumGC))

			observer.ObserveFloat64(startTime, float64(processStartTime.Unix()))
			observer.ObserveFloat64(uptime, time.Since(processStartTime).Seconds())
			return nil
		},
		goroutines,
		heapBytes,
		stackBytes,
		sysBytes,
		gcCount,
		startTime,
		uptime,
	)
	return err
}
