/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-exchange-go/pkg/controller/command"
)

var logger = log.New("aries-framework/controller/rest")

// Handler http handler for each controller API endpoint.
type Handler interface {
	Path() string
	Method() string
	Handle() http.HandlerFunc
}

// genericErrorBody is the body of every error response.
type genericErrorBody struct {
	Code    command.Code `json:"code"`
	Message string       `json:"message"`
}

// Execute executes the command and writes its response or error to rw.
func Execute(exec command.Exec, rw http.ResponseWriter, req io.Reader) {
	var buf bytes.Buffer

	if err := exec(&buf, req); err != nil {
		SendError(rw, err)

		return
	}

	rw.Header().Set("Content-Type", "application/json")

	if _, err := rw.Write(buf.Bytes()); err != nil {
		logger.Errorf("Unable to send response, %s", err)
	}
}

// SendError sends the command error with the HTTP status matching its type.
func SendError(rw http.ResponseWriter, err command.Error) {
	var status int

	switch err.Type() {
	case command.ValidationError:
		status = http.StatusBadRequest
	case command.NotFoundError:
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
	}

	SendHTTPStatusError(rw, status, err.Code(), err)
}

// SendHTTPStatusError sends the error with the given HTTP status.
func SendHTTPStatusError(rw http.ResponseWriter, httpStatus int, code command.Code, err error) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(httpStatus)

	e := json.NewEncoder(rw).Encode(genericErrorBody{
		Code:    code,
		Message: err.Error(),
	})
	if e != nil {
		logger.Errorf("Unable to send error message, %s", e)
	}
}

// ExecuteWithPathParams executes the command with the request body extended by the path variables
// of the request. Fields maps a body field to the name of the path variable filling it. A body that
// is not a JSON object is rejected with the given code.
func ExecuteWithPathParams(exec command.Exec, rw http.ResponseWriter, req *http.Request, code command.Code,
	fields map[string]string) {
	body := map[string]json.RawMessage{}

	if req.Body != nil {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			SendHTTPStatusError(rw, http.StatusBadRequest, code, fmt.Errorf("invalid request body: %w", err))

			return
		}
	}

	vars := mux.Vars(req)

	for field, name := range fields {
		value, err := json.Marshal(vars[name])
		if err != nil {
			SendHTTPStatusError(rw, http.StatusBadRequest, code, err)

			return
		}

		body[field] = value
	}

	src, err := json.Marshal(body)
	if err != nil {
		SendHTTPStatusError(rw, http.StatusInternalServerError, code, err)

		return
	}

	Execute(exec, rw, bytes.NewReader(src))
}

// ExecuteWithQuery executes the command with a JSON object built from the URL query of the
// request, keeping the first value of each parameter.
func ExecuteWithQuery(exec command.Exec, rw http.ResponseWriter, req *http.Request) {
	args := map[string]string{}

	for key, values := range req.URL.Query() {
		if len(values) > 0 {
			args[key] = values[0]
		}
	}

	src, err := json.Marshal(args)
	if err != nil {
		SendHTTPStatusError(rw, http.StatusInternalServerError, command.UnknownStatus, err)

		return
	}

	Execute(exec, rw, bytes.NewReader(src))
}
