/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
)

const (
	actionAccept               exchange.Action = "accept-invitation"
	actionReceiveReuse         exchange.Action = "receive-handshake-reuse"
	actionReceiveReuseAccepted exchange.Action = "receive-handshake-reuse-accepted"
	actionComplete             exchange.Action = "complete"
)

type transition struct {
	action exchange.Action
	role   Role
	from   []State
	to     State
}

// transitions lists every legal move of an out-of-band record. A reusable sender record stays in
// await-response, the service keeps it there instead of applying the move to done.
var transitions = []transition{
	{action: actionAccept, role: RoleReceiver, from: []State{StateInitial}, to: StatePrepareResponse},
	{action: actionReceiveReuse, role: RoleSender, from: []State{StateAwaitResponse}, to: StateDone},
	{action: actionReceiveReuseAccepted, role: RoleReceiver, from: []State{StatePrepareResponse}, to: StateDone},
	{action: actionComplete, role: RoleSender, from: []State{StateAwaitResponse}, to: StateDone},
	{action: actionComplete, role: RoleReceiver, from: []State{StatePrepareResponse}, to: StateDone},
}

// next returns the state the action moves the record to.
func next(action exchange.Action, role Role, current State) (State, error) {
	var permitted []exchange.State

	for _, t := range transitions {
		if t.action != action || t.role != role {
			continue
		}

		for _, from := range t.from {
			if from == current {
				return t.to, nil
			}

			permitted = append(permitted, exchange.State(from))
		}
	}

	return "", &exchange.StateError{
		Action:    action,
		Role:      exchange.Role(role),
		Current:   exchange.State(current),
		Permitted: permitted,
	}
}

// move applies the action to the record.
func (r *Record) move(action exchange.Action) error {
	to, err := next(action, r.Role, r.State)
	if err != nil {
		return err
	}

	if r.Role == RoleSender && r.Reusable {
		return nil
	}

	r.State = to

	return nil
}
