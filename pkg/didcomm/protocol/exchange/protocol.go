/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package exchange

import (
	"errors"
	"fmt"
)

// Transition is one legal move of the state machine. From may contain "" meaning there is no record yet.
type Transition struct {
	Action Action
	Role   Role
	From   []State
	To     State
}

// Protocol describes an instantiation of the exchange engine.
type Protocol struct {
	// Name of the protocol, e.g. issue-credential.
	Name string
	// Roles are the two parties of the protocol.
	Roles [2]Role
	// Senders maps every stage to the role sending it.
	Senders map[Stage]Role
	// Next maps a received stage to the stage answering it on accept. A result is answered by an ack.
	Next map[Stage]Stage
	// Counter maps a received stage to the stage answering it on negotiation.
	Counter map[Stage]Stage
	// Transitions is the legal-transition table.
	Transitions []Transition
	// Vocabularies lists the supported message vocabularies, the first one is the default.
	Vocabularies []Vocabulary
}

// Counterpart returns the other role.
func (p *Protocol) Counterpart(r Role) Role {
	if p.Roles[0] == r {
		return p.Roles[1]
	}

	return p.Roles[0]
}

// HasRole reports whether the role belongs to the protocol.
func (p *Protocol) HasRole(r Role) bool {
	return p.Roles[0] == r || p.Roles[1] == r
}

// Lookup returns the transition of the action for the role from the current state.
// Abandon and problem reports are legal from every non-terminal state.
func (p *Protocol) Lookup(action Action, role Role, current State) (*Transition, error) {
	if action == ActionAbandon || action == ActionReceiveProblemReport {
		if current == "" || current.IsTerminal() {
			return nil, &StateError{Action: action, Role: role, Current: current, Permitted: p.nonTerminal()}
		}

		return &Transition{Action: action, Role: role, From: []State{current}, To: StateAbandoned}, nil
	}

	var permitted []State

	for i := range p.Transitions {
		t := &p.Transitions[i]
		if t.Action != action || t.Role != role {
			continue
		}

		for _, from := range t.From {
			if from == current {
				return t, nil
			}
		}

		permitted = append(permitted, t.From...)
	}

	return nil, &StateError{Action: action, Role: role, Current: current, Permitted: permitted}
}

func (p *Protocol) nonTerminal() []State {
	seen := map[State]struct{}{}

	var states []State

	for _, t := range p.Transitions {
		for _, s := range append(append([]State(nil), t.From...), t.To) {
			if _, ok := seen[s]; ok || s == "" || s.IsTerminal() {
				continue
			}

			seen[s] = struct{}{}
			states = append(states, s)
		}
	}

	return states
}

// Vocabulary returns the vocabulary of the given protocol version, the default one for an empty version.
func (p *Protocol) Vocabulary(version string) (Vocabulary, error) {
	if len(p.Vocabularies) == 0 {
		return nil, errors.New("protocol has no vocabulary")
	}

	if version == "" {
		return p.Vocabularies[0], nil
	}

	for _, v := range p.Vocabularies {
		if v.Version() == version {
			return v, nil
		}
	}

	return nil, NewValidationError("unsupported %s version %q", p.Name, version)
}

func (p *Protocol) vocabularyFor(msgType string) (Vocabulary, MessageKind, bool) {
	for _, v := range p.Vocabularies {
		if kind, ok := v.Kind(msgType); ok {
			return v, kind, true
		}
	}

	return nil, "", false
}

// Validate checks the consistency of the descriptor.
func (p *Protocol) Validate() error {
	if p.Name == "" {
		return errors.New("protocol name is mandatory")
	}

	if p.Roles[0] == "" || p.Roles[1] == "" || p.Roles[0] == p.Roles[1] {
		return fmt.Errorf("protocol %s: two distinct roles are required", p.Name)
	}

	for stage, role := range p.Senders {
		if !p.HasRole(role) {
			return fmt.Errorf("protocol %s: stage %s is sent by unknown role %s", p.Name, stage, role)
		}
	}

	for _, m := range []map[Stage]Stage{p.Next, p.Counter} {
		for from, to := range m {
			if _, ok := p.Senders[from]; !ok {
				return fmt.Errorf("protocol %s: unknown stage %s", p.Name, from)
			}

			if _, ok := p.Senders[to]; !ok {
				return fmt.Errorf("protocol %s: unknown stage %s", p.Name, to)
			}
		}
	}

	for _, t := range p.Transitions {
		if !p.HasRole(t.Role) {
			return fmt.Errorf("protocol %s: transition %s has unknown role %s", p.Name, t.Action, t.Role)
		}
	}

	if len(p.Vocabularies) == 0 {
		return fmt.Errorf("protocol %s: at least one vocabulary is required", p.Name)
	}

	return nil
}
