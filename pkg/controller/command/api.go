/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package command

import "io"

// Exec runs one controller command. The request is read from req as JSON and the response written to rw.
type Exec func(rw io.Writer, req io.Reader) Error

// Handler is a controller command, addressed by Name (the protocol) and Method.
type Handler interface {
	Name() string
	Method() string
	Handle() Exec
}

// Notifier publishes the protocol events of the commands, e.g. to webhooks and WebSocket subscribers.
type Notifier interface {
	Notify(topic string, message []byte) error
}
