// Package retry provides exponential backoff retry logic for transient
// failures.
//
// WithExponentialBackoff retries an operation with configurable max
// attempts, initial delay, and maximum delay. No other VURM package
// imports it: the reconnecting RPC pool (internal/rpcpool) computes its
// own backoff between connection attempts, and the SSH client
// (internal/ssh) retries its dial at a fixed interval.
package retry
