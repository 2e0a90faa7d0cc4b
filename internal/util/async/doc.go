// Package async provides utilities for parallel task execution with
// error collection.
//
// RunParallel executes multiple operations concurrently and returns all of
// their errors joined, each tagged with its task's name. The controller uses it to fan out independent,
// per-cluster teardown work (DestroyAllVirtualClusters) without blocking
// one cluster's release on another's.
package async
