/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package outofband provides support for the Out-of-Band protocols:
// https://github.com/hyperledger/aries-rfcs/blob/master/features/0434-outofband/README.md.
//
// Create your client:
//
// ctx := getFrameworkContext()
// client, err := outofband.New(ctx)
// if err != nil {
//     panic(err)
// }
//
// Invitations are created with client.CreateInvitation() or client.CreateInvitationURL(). Requests of
// other protocols are embedded with WithMessages; create them with the parent thread id returned by
// NewInvitationID() and pass the same id with WithInvitationID.
//
// Invitations received out of band are accepted with client.AcceptInvitation() or
// client.AcceptInvitationURL(). These return the ID of the connection the invitation resolved to.
// With WithReuseConnection an existing connection with the inviter is reused through a
// handshake-reuse instead of creating a new one.
//
// Progress is reported on the state event stream:
//
// states := make(chan service.StateMsg)
// err = client.RegisterMsgEvent(states)
// if err != nil {
//    panic(err)
// }
//
// for state := range states {
//     e, err := outofband.EventOf(state)
//     if err != nil {
//         continue
//     }
//
//     // e.RecordID(), e.InvitationID(), e.ConnectionID()
// }
//
// Note: the ouf-of-band protocol results in the execution of other protocols. You need to subscribe
// to the event and state streams of those protocols as well.
package outofband
