package singleinstance

// This file defines the API for single-instance ownership and trigger delegation.

import (
	"context"
	"errors"
)

// ErrClosed is returned by Next once the server has been closed.
var ErrClosed = errors.New("singleinstance: server closed")

// Server owns the TCP endpoint and answers trigger requests from other processes.
type Server interface {
	// Start binds the first port of the configured range and begins accepting clients.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	// Request returns the parsed client request.
	Request() Request
	// RespondOK acknowledges that the trigger was accepted.
	RespondOK() error
	// RespondError sends an error with human-readable message.
	RespondError(msg string) error
	// Close closes the underlying connection.
	Close() error
}

// Request represents a single delegated trigger.
type Request struct {
	Trigger string
}

// Client attempts to hand a trigger to a resident server.
type Client interface {
	// Delegate scans the port range, performs the PING handshake and sends the trigger.
	// If no resident is found, returns delegated=false, err=nil.
	Delegate(ctx context.Context, trigger string) (delegated bool, err error)
}

// NewServer returns TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns TCP implementation.
func NewClient() Client { return newTcpClient() }
