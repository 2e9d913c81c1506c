// Package ops exposes the operational HTTP surface of the certificate
// manager: liveness, current certificate status, and an operator-triggered
// forced renewal. It is mounted on the loopback-bound ops server and returns
// JSON exclusively.
package ops
