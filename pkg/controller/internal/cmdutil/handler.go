/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cmdutil

import (
	"net/http"

	"github.com/hyperledger/aries-exchange-go/pkg/controller/command"
)

// HTTPHandler binds a REST path and method to its handler func.
type HTTPHandler struct {
	path   string
	method string
	handle http.HandlerFunc
}

// NewHTTPHandler returns the REST handler of path for method.
func NewHTTPHandler(path, method string, handle http.HandlerFunc) *HTTPHandler {
	return &HTTPHandler{path: path, method: method, handle: handle}
}

// Path of the route.
func (h *HTTPHandler) Path() string { return h.path }

// Method of the route.
func (h *HTTPHandler) Method() string { return h.method }

// Handle returns the handler func.
func (h *HTTPHandler) Handle() http.HandlerFunc { return h.handle }

// CommandHandler binds a controller command name and method to its Exec.
type CommandHandler struct {
	name   string
	method string
	exec   command.Exec
}

// NewCommandHandler returns the controller command method of name.
func NewCommandHandler(name, method string, exec command.Exec) *CommandHandler {
	return &CommandHandler{name: name, method: method, exec: exec}
}

// Name of the command group, e.g. "issuecredential".
func (c *CommandHandler) Name() string { return c.name }

// Method of the command group, e.g. "AcceptOffer".
func (c *CommandHandler) Method() string { return c.method }

// Handle returns the command Exec.
func (c *CommandHandler) Handle() command.Exec { return c.exec }
