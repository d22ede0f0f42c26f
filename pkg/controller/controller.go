/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package controller

import (
	"fmt"

	"github.com/hyperledger/aries-exchange-go/pkg/controller/command"
	issuecredentialcmd "github.com/hyperledger/aries-exchange-go/pkg/controller/command/issuecredential"
	outofbandcmd "github.com/hyperledger/aries-exchange-go/pkg/controller/command/outofband"
	presentproofcmd "github.com/hyperledger/aries-exchange-go/pkg/controller/command/presentproof"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/rest"
	issuecredentialrest "github.com/hyperledger/aries-exchange-go/pkg/controller/rest/issuecredential"
	outofbandrest "github.com/hyperledger/aries-exchange-go/pkg/controller/rest/outofband"
	presentproofrest "github.com/hyperledger/aries-exchange-go/pkg/controller/rest/presentproof"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/webnotifier"
)

type allOpts struct {
	webhookURLs []string
	notifier    command.Notifier
}

const wsPath = "/ws"

// Provider supplies the protocol services, typically an agent.Provider.
type Provider interface {
	ServiceEndpoint() string
	Service(id string) (interface{}, error)
}

// Opt represents a controller option.
type Opt func(opts *allOpts)

// WithWebhookURLs is an option for setting up a webhook dispatcher which will notify clients of events.
func WithWebhookURLs(webhookURLs ...string) Opt {
	return func(opts *allOpts) {
		opts.webhookURLs = webhookURLs
	}
}

// WithNotifier is an option for setting up a notifier which will notify clients of events.
func WithNotifier(notifier command.Notifier) Opt {
	return func(opts *allOpts) {
		opts.notifier = notifier
	}
}

func notifierOf(opts []Opt) command.Notifier {
	o := &allOpts{}
	for _, opt := range opts {
		opt(o)
	}

	if o.notifier == nil {
		return webnotifier.New(wsPath, o.webhookURLs)
	}

	return o.notifier
}

// GetRESTHandlers returns all REST handlers provided by controller.
func GetRESTHandlers(ctx Provider, opts ...Opt) ([]rest.Handler, error) {
	notifier := notifierOf(opts)

	outofbandOp, err := outofbandrest.New(ctx, notifier)
	if err != nil {
		return nil, err
	}

	issuecredentialOp, err := issuecredentialrest.New(ctx, notifier)
	if err != nil {
		return nil, err
	}

	presentproofOp, err := presentproofrest.New(ctx, notifier)
	if err != nil {
		return nil, err
	}

	var allHandlers []rest.Handler
	allHandlers = append(allHandlers, outofbandOp.GetRESTHandlers()...)
	allHandlers = append(allHandlers, issuecredentialOp.GetRESTHandlers()...)
	allHandlers = append(allHandlers, presentproofOp.GetRESTHandlers()...)

	nhp, ok := notifier.(handlerProvider)
	if ok {
		allHandlers = append(allHandlers, nhp.GetRESTHandlers()...)
	}

	return allHandlers, nil
}

type handlerProvider interface {
	GetRESTHandlers() []rest.Handler
}

// GetCommandHandlers returns all command handlers provided by controller.
func GetCommandHandlers(ctx Provider, opts ...Opt) ([]command.Handler, error) {
	notifier := notifierOf(opts)

	outofbandCmd, err := outofbandcmd.New(ctx, notifier)
	if err != nil {
		return nil, fmt.Errorf("create outofband command : %w", err)
	}

	issuecredentialCmd, err := issuecredentialcmd.New(ctx, notifier)
	if err != nil {
		return nil, fmt.Errorf("create issue credential command : %w", err)
	}

	presentproofCmd, err := presentproofcmd.New(ctx, notifier)
	if err != nil {
		return nil, fmt.Errorf("create present proof command : %w", err)
	}

	var allHandlers []command.Handler
	allHandlers = append(allHandlers, outofbandCmd.GetHandlers()...)
	allHandlers = append(allHandlers, issuecredentialCmd.GetHandlers()...)
	allHandlers = append(allHandlers, presentproofCmd.GetHandlers()...)

	return allHandlers, nil
}
