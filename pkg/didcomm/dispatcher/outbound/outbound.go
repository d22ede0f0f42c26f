/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/transport"
)

const (
	defaultMaxRetries  = 3
	defaultRetryPeriod = 200 * time.Millisecond
)

var logger = log.New("aries-framework/didcomm/dispatcher")

// provider interface for outbound ctx.
type provider interface {
	OutboundTransports() []transport.OutboundTransport
	TransportReturnRoute() string
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithRetry sets the number of retries and the initial retry period for failed sends.
func WithRetry(maxRetries uint64, period time.Duration) Option {
	return func(d *Dispatcher) {
		d.maxRetries = maxRetries
		d.retryPeriod = period
	}
}

// Dispatcher dispatch msgs to destination.
type Dispatcher struct {
	outboundTransports   []transport.OutboundTransport
	transportReturnRoute string
	maxRetries           uint64
	retryPeriod          time.Duration

	mu           sync.RWMutex
	replyHandler transport.InboundMessageHandler
}

// NewOutbound return new dispatcher outbound instance.
func NewOutbound(prov provider, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		outboundTransports:   prov.OutboundTransports(),
		transportReturnRoute: prov.TransportReturnRoute(),
		maxRetries:           defaultMaxRetries,
		retryPeriod:          defaultRetryPeriod,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// SetReplyHandler sets the handler receiving messages that come back synchronously as a transport response.
func (o *Dispatcher) SetReplyHandler(h transport.InboundMessageHandler) {
	o.mu.Lock()
	o.replyHandler = h
	o.mu.Unlock()
}

// Send sends the message to the destination using the first transport accepting its endpoint.
func (o *Dispatcher) Send(ctx context.Context, msg service.DIDCommMsgMap, senderKey string,
	des *service.Destination) error {
	if des == nil {
		return errors.New("destination is mandatory")
	}

	ot := o.transportFor(des.ServiceEndpoint)
	if ot == nil {
		return fmt.Errorf("no outbound transport found for serviceEndpoint: %s", des.ServiceEndpoint)
	}

	// update the outbound message with transport return route option [all or thread]
	if o.transportReturnRoute == decorator.TransportReturnRouteAll ||
		o.transportReturnRoute == decorator.TransportReturnRouteThread {
		msg = msg.Clone()
		msg["~transport"] = &decorator.ReturnRoute{Value: o.transportReturnRoute}
	}

	raw, err := msg.MarshalForWire()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	data, err := json.Marshal(&transport.Envelope{Message: raw, SenderKey: senderKey, RecipientKeys: des.RecipientKeys})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	var reply []byte

	err = backoff.Retry(func() error {
		var sendErr error

		reply, sendErr = ot.Send(ctx, data, des)
		if sendErr != nil {
			logger.Debugf("send to %s failed, retrying: %v", des.ServiceEndpoint, sendErr)
		}

		return sendErr
	}, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.retryPeriod), o.maxRetries), ctx))
	if err != nil {
		return fmt.Errorf("failed to send msg using outbound transport: %w", err)
	}

	if len(reply) > 0 {
		o.handleReply(ctx, reply)
	}

	return nil
}

func (o *Dispatcher) transportFor(endpoint string) transport.OutboundTransport {
	for _, v := range o.outboundTransports {
		if v.Accept(endpoint) {
			return v
		}
	}

	return nil
}

func (o *Dispatcher) handleReply(ctx context.Context, reply []byte) {
	o.mu.RLock()
	h := o.replyHandler
	o.mu.RUnlock()

	if h == nil {
		logger.Warnf("dropping return route reply: no reply handler")
		return
	}

	env := &transport.Envelope{}
	if err := json.Unmarshal(reply, env); err != nil {
		logger.Warnf("dropping return route reply: %v", err)
		return
	}

	if err := h(ctx, env, nil); err != nil {
		logger.Warnf("return route reply processing failed: %v", err)
	}
}
