// Package common provides the configuration structures, the logger factory and
// the metrics set shared by every csIPC component.
//
// Key Components:
//
//   - ServerConfig: configuration of one pipe server role (endpoint, number of
//     I/O loops, loop selection strategy, read size, frame limit, dispatch mode).
//
//   - ClientConfig: configuration of a dialing peer (endpoint, timeout, retries).
//
//   - Logger: custom logging implementation that plugs into Dragonboat's
//     logger facade, so every package obtains its logger through
//     logger.GetLogger and shares one format and level.
//
//   - Metrics: a VictoriaMetrics metrics set counting connections, frames and
//     bytes, exportable in Prometheus text format.
package common
