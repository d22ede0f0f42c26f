/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package exchange is a DIDComm agent library for verifiable credential issuance and proof presentation.
//
// Packages for end developer usage
//
// pkg/framework/agent: creates an agent from options and exposes its context to the clients and controller.
//
// pkg/client/outofband: creates and accepts out-of-band invitations, including connection-less
// invitations carrying an issue-credential offer or a present-proof request.
//
// pkg/controller: command and REST handlers of the out-of-band, issue-credential and present-proof
// protocols.
//
// Basic workflow
//
//  1. Create an agent with agent.New, passing its options.
//  2. Create the out-of-band client or the controller with the agent context.
//  3. Drive the exchanges through the client, the commands or the REST API.
//  4. Call Close on the agent to release resources.
package exchange
