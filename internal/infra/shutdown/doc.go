// Package shutdown coordinates the graceful stop of a node.
//
// Hooks are registered as components start and run in reverse order once
// SIGINT or SIGTERM arrives or the context passed to Wait is done:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown(srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
