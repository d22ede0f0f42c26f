/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import "errors"

var (
	// ErrChannelRegistered throws when a channel is already registered.
	ErrChannelRegistered = errors.New("channel is already registered for the action event")
	// ErrNilChannel throws when a nil channel is passed to register or unregister.
	ErrNilChannel = errors.New("cannot pass nil channel")
	// ErrInvalidChannel throws when the channel passed to unregister is not the registered one.
	ErrInvalidChannel = errors.New("invalid channel passed to unregister the action event")
	// ErrThreadIDNotFound is returned when a message carries neither a thread ID nor an ID.
	ErrThreadIDNotFound = errors.New("threadID not found")
	// ErrInvalidMessage is returned when a message cannot be parsed into a DIDComm message map.
	ErrInvalidMessage = errors.New("invalid message")
)
