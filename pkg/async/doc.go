// Package async provides supervised goroutine helpers for
// fire-and-forget background work: bounded lifetimes, panic recovery,
// and error logging. Anything that must not outlive a request or
// crash the host on a panic goes through SafeGo rather than a bare go
// statement.
package async
