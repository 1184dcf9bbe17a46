// Package trace implements the runtime side of the trace intrinsics.
//
// Tracing is configured per process through the TENSORCHECK_TRACE
// environment variable and is off unless process_tracing is set.
package trace
