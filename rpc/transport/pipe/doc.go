// Package pipe implements the local transport of csIPC.
//
// On Unix systems endpoints are Unix domain sockets. A socket file left behind
// by a crashed server is removed before listening. On Windows endpoints are
// named pipes (\\.\pipe\<name>) created through go-winio.
//
// DefaultEndpoint maps a logical name like "main" or "service" to the
// platform's endpoint path, so both sides agree on the well-known address
// without configuration.
package pipe
