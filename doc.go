// Package motionlog records multi-sensor motion capture streams over UDP
// and time-aligns the recorded tables onto a common clock.
//
// # Architecture
//
// Motionlog has two phases. A live recording phase ingests sensor
// datagrams and accumulates per-device time series, and an offline
// aggregation phase resamples those series onto the clock of a single
// reference device.
//
//	┌──────────┐   datagrams   ┌──────────┐   snapshot   ┌───────────┐
//	│ Sensors  ├──────────────►│ Recorder ├─────────────►│ Live table│
//	│ (UDP)    │               │ (capture)│              │ (.csv/.gz)│
//	└──────────┘               └──────────┘              └─────┬─────┘
//	                                                           │
//	                                                      aggregate
//	                                                           ▼
//	                                                    ┌─────────────┐
//	                                                    │ Aggregated  │
//	                                                    │ table       │
//	                                                    └─────────────┘
//
// Each datagram carries one sender-side timestamp followed by any number
// of four-field readings (device id, X, Y, Z). Devices sample on
// independent clocks, so the live table is ragged: every device keeps
// its own time column. Aggregation picks the device whose recording
// spans the least time as the reference and averages every other
// device's samples into half-open windows around each reference
// timestamp.
//
// # Packages
//
// Ingestion:
//   - wire: datagram text format parsing
//   - device: sensor declarations and column layout
//   - capture: UDP recorder and in-memory sample store
//
// Tables:
//   - table: columnar text table reading and writing, gzip aware
//   - resample: time alignment onto the reference clock
//
// Infrastructure:
//   - config: YAML configuration
//   - metric: Prometheus metrics registry and HTTP endpoint
//   - errors: structured error handling with severity classes
//
// # Binary
//
// Build and run motionlog:
//
//	# Record until interrupted, then write output.csv
//	./bin/motionlog --devices="1:chest, 2:wrist" record
//
//	# Time-align a finished recording
//	./bin/motionlog aggregate output.csv
package motionlog
