// Package acme drives the HTTP-01 challenge/response exchange with a
// certificate authority to obtain publicly trusted certificates.
//
// The protocol itself is delegated to github.com/go-acme/lego/v4; this
// package owns attempt orchestration: account setup, the challenge
// responder, directory selection (staging vs production), bounded timeouts,
// and failure classification.
//
// Each Obtain call is a single attempt moving through the states
// start, challenge_server_up, challenge_requested, challenge_validated,
// certificate_issued, finalized, or aborted from any non-terminal state.
// No retries happen inside an attempt; a failed attempt is retried only on
// the next scheduled cycle so CA rate limits are respected.
//
// The challenge responder binds a dedicated address (never the proxy's
// port); the rendered proxy configuration forwards
// /.well-known/acme-challenge/ requests to it, so the two processes can
// never contend for the same bind.
//
// Failures are classified into ErrChallengeFailed (domain validation did not
// complete) and ErrIssuanceFailed (the CA refused issuance, e.g. rate
// limiting). Neither failure mode writes any certificate files.
package acme
