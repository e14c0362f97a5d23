// Package http contains the chi HTTP handlers for the licensing subsystem
// and the RFC 7807 problem-details responses they render on failure.
package http
