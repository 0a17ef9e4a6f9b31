// Package telemetry writes the State Aggregator's Room rollups to an
// InfluxDB bucket so brightness/colour-temperature/power trends can be
// graphed outside the process. It is an optional enrichment: a Client run
// without an InfluxDB section in config never opens this connection.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/cyncmesh/cync-core/internal/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	millisecondsPerSecond = 1000

	defaultBatchSize      = 100
	defaultFlushInterval  = 10
	maxBatchSize          = 100000
	maxFlushIntervalSecs  = 3600
)

// Writer wraps the InfluxDB v2 client with a non-blocking, batched write
// API scoped to Room rollups.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	connected bool
	mu        sync.RWMutex

	onError func(err error)
	done    chan struct{}
}

// resolveBatchSettings applies defaults and bounds-checks the configured
// batch size and flush interval before they are handed to the InfluxDB
// client, which silently misbehaves on out-of-range values.
func resolveBatchSettings(batchSize, flushIntervalSecs int) (int, int, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	} else if batchSize > maxBatchSize {
		return 0, 0, fmt.Errorf("batch_size %d exceeds maximum %d", batchSize, maxBatchSize)
	}
	if flushIntervalSecs <= 0 {
		flushIntervalSecs = defaultFlushInterval
	} else if flushIntervalSecs > maxFlushIntervalSecs {
		return 0, 0, fmt.Errorf("flush_interval_seconds %d exceeds maximum %d", flushIntervalSecs, maxFlushIntervalSecs)
	}
	return batchSize, flushIntervalSecs, nil
}

// Connect establishes a connection to the InfluxDB server, verifies
// connectivity with a ping, and configures a non-blocking, batched write
// API.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Writer, error) {
	batchSize, flushInterval, err := resolveBatchSettings(cfg.BatchSize, cfg.FlushSeconds)
	if err != nil {
		return nil, err
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	pingCtx := ctx
	if pingCtx == nil {
		pingCtx = context.Background()
	}
	pingCtx, cancel := context.WithTimeout(pingCtx, defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	w := &Writer{
		client:    client,
		writeAPI:  writeAPI,
		connected: true,
		done:      make(chan struct{}),
	}

	go w.handleWriteErrors(writeAPI.Errors())

	return w, nil
}

func (w *Writer) handleWriteErrors(errorsCh <-chan error) {
	for {
		select {
		case <-w.done:
			return
		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			w.mu.RLock()
			callback := w.onError
			w.mu.RUnlock()
			if callback != nil {
				callback(err)
			}
		}
	}
}

// Close flushes pending writes and shuts down the connection.
func (w *Writer) Close() error {
	if w.client == nil {
		return nil
	}

	w.mu.Lock()
	w.connected = false
	w.mu.Unlock()

	w.writeAPI.Flush()

	if w.done != nil {
		close(w.done)
	}

	w.client.Close()

	return nil
}

// IsConnected returns the current connection state.
func (w *Writer) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// SetOnError sets a callback invoked when async write errors occur.
func (w *Writer) SetOnError(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = callback
}

// Flush blocks until all buffered points are written. Safe to call after
// Close (no-op).
func (w *Writer) Flush() {
	if w.writeAPI == nil {
		return
	}
	if !w.IsConnected() {
		return
	}
	w.writeAPI.Flush()
}

// RoomRollup is the subset of a Room's rolled-up state worth graphing.
type RoomRollup struct {
	RoomID           string
	Power            bool
	BrightnessPct    int
	ColorTempPct     int
	RGBActive        bool
}

// WriteRoomRollup records a Room rollup as a single InfluxDB point. The
// write is non-blocking; points are batched and flushed on the writer's
// configured interval.
func (w *Writer) WriteRoomRollup(roomID string, r RoomRollup) {
	if !w.IsConnected() {
		return
	}

	power := 0
	if r.Power {
		power = 1
	}

	point := write.NewPoint(
		"room_rollup",
		map[string]string{
			"room_id": roomID,
		},
		map[string]interface{}{
			"power":          power,
			"brightness_pct": r.BrightnessPct,
			"color_temp_pct": r.ColorTempPct,
		},
		time.Now(),
	)

	w.writeAPI.WritePoint(point)
}

// WriteCommandLatency records how long a command took from submission to
// ack, keyed by the entity it targeted.
func (w *Writer) WriteCommandLatency(entityID string, latency time.Duration) {
	if !w.IsConnected() {
		return
	}

	point := write.NewPoint(
		"command_latency",
		map[string]string{
			"entity_id": entityID,
		},
		map[string]interface{}{
			"latency_ms": latency.Milliseconds(),
		},
		time.Now(),
	)

	w.writeAPI.WritePoint(point)
}
