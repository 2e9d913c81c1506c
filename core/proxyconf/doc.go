// Package proxyconf renders, validates, and activates the reverse-proxy
// configuration, and coordinates graceful proxy reloads.
//
// The active configuration file is never written directly. A renewal cycle
// renders the vhost from a template into a staging path, runs the proxy's
// own syntax check against the staged file, and only on success atomically
// replaces the active file (temporary write + rename). A failed syntax check
// aborts the cycle and leaves both the previous configuration and the
// previous certificate untouched.
//
// Reloads are graceful (connection draining), bounded by the caller's
// context. A reload failure is reported but already-validated files are NOT
// rolled back: validation guarantees the content is sound, so only the
// application mechanism failed and an operator should intervene.
//
// The rendered vhost always carries a /.well-known/acme-challenge/ location
// forwarding to the internal challenge responder, which is how certificate
// issuance stays non-disruptive to live traffic: the proxy keeps port 80
// while challenges are served from a dedicated local address.
package proxyconf
