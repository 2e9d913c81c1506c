// Package server provides a graceful HTTP server for the operational
// surface. It wraps http.Server with conservative timeouts, context-driven
// shutdown, and an errgroup-compatible runner.
//
// The server binds to a loopback address by default; the operational
// endpoints are not meant to be exposed past the host. TLS termination is
// the reverse proxy's job, so this server speaks plain HTTP only.
//
// Usage:
//
//	cfg := server.Config{Addr: "127.0.0.1:9180"}
//	srv, err := server.NewFromConfig(cfg, server.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx, handler)
package server
