/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/pkg/errors"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/transport"
)

var logger = log.New("aries-framework/http")

// NewInboundHandler will create a new handler to enforce Did-Comm HTTP transport specs
// then routes processing to the mandatory 'msgHandler' argument.
//
// Arguments:
//   - 'msgHandler' is the handler function that will be executed with the inbound envelope.
//     Processing errors are logged and never returned to the remote agent.
func NewInboundHandler(msgHandler transport.InboundMessageHandler) (http.Handler, error) {
	if msgHandler == nil {
		logger.Errorf("Error creating a new inbound handler: message handler function is nil")
		return nil, errors.New("failed to create NewInboundHandler")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processPOSTRequest(w, r, msgHandler)
	}), nil
}

func processPOSTRequest(w http.ResponseWriter, r *http.Request, messageHandler transport.InboundMessageHandler) {
	if valid := validateHTTPMethod(w, r); !valid {
		return
	}

	if valid := validatePayload(r, w); !valid {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Errorf("Error reading request body: %s - returning Code: %d", err, http.StatusInternalServerError)
		http.Error(w, "Failed to read payload", http.StatusInternalServerError)

		return
	}

	env := &transport.Envelope{}

	if err = json.Unmarshal(body, env); err != nil || len(env.Message) == 0 {
		logger.Errorf("Error parsing envelope: %v - returning Code: %d", err, http.StatusBadRequest)
		http.Error(w, "Invalid envelope", http.StatusBadRequest)

		return
	}

	responder := &syncResponder{}

	if err = messageHandler(r.Context(), env, responder); err != nil {
		logger.Warnf("incoming message processing failed: %s", errors.Wrap(err, "http inbound"))
	}

	reply := responder.reply()
	if reply == nil {
		w.WriteHeader(http.StatusAccepted)

		return
	}

	w.Header().Set("Content-Type", transport.MediaTypePlaintextEnvelope)
	w.WriteHeader(http.StatusOK)

	if _, err = w.Write(reply); err != nil {
		logger.Errorf("failed to write return route reply: %v", err)
	}
}

// syncResponder collects the reply written while the request is being processed.
type syncResponder struct {
	mu   sync.Mutex
	data []byte
}

func (s *syncResponder) Respond(_ context.Context, msg service.DIDCommMsgMap) error {
	raw, err := msg.MarshalForWire()
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	env, err := json.Marshal(&transport.Envelope{Message: raw})
	if err != nil {
		return fmt.Errorf("marshal reply envelope: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data != nil {
		return errors.New("return route reply already written")
	}

	s.data = env

	return nil
}

func (s *syncResponder) reply() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.data
}

// validatePayload validate and get the payload from the request.
func validatePayload(r *http.Request, w http.ResponseWriter) bool {
	if r.ContentLength == 0 { // empty payload should not be accepted
		http.Error(w, "Empty payload", http.StatusBadRequest)
		return false
	}

	return true
}

// validateHTTPMethod validate HTTP method and content-type.
func validateHTTPMethod(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "HTTP Method not allowed", http.StatusMethodNotAllowed)
		return false
	}

	ct := r.Header.Get("Content-type")
	if ct != transport.MediaTypePlaintextEnvelope {
		http.Error(w, fmt.Sprintf("Unsupported Content-type \"%s\"", ct), http.StatusUnsupportedMediaType)
		return false
	}

	return true
}
