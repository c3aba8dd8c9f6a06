// Package tlsroots provides TLS trust roots for host connections.
//
// The system pool is used by default; a PEM bundle configured as
// tls.ca_file is added on top of it for hosts behind a private CA.
package tlsroots
