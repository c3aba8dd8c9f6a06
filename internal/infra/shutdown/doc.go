// Package shutdown cancels in-flight work on SIGINT/SIGTERM and runs exit
// hooks (metrics flush, log close) exactly once.
//
// Usage:
//
//	ctx, cancel := shutdown.WithSignals(context.Background())
//	defer cancel()
//	h := shutdown.NewHandler(0)
//	defer h.Run()
package shutdown
