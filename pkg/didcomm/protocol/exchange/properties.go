/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package exchange

const (
	recordIDPropKey     = "recordID"
	threadIDPropKey     = "threadID"
	connectionIDPropKey = "connectionID"
	rolePropKey         = "role"
	statePropKey        = "state"
	errorPropKey        = "error"
)

type eventProps struct {
	recordID     string
	threadID     string
	connectionID string
	role         Role
	state        State
	err          error
}

func newEventProps(rec *Record, err error) *eventProps {
	return &eventProps{
		recordID:     rec.ID,
		threadID:     rec.ThreadID,
		connectionID: rec.ConnectionID,
		role:         rec.Role,
		state:        rec.State,
		err:          err,
	}
}

// RecordID of the record the event is about.
func (e *eventProps) RecordID() string {
	return e.recordID
}

// ThreadID of the record the event is about.
func (e *eventProps) ThreadID() string {
	return e.threadID
}

func (e *eventProps) Err() error {
	return e.err
}

// All implements EventProperties interface.
func (e *eventProps) All() map[string]interface{} {
	props := map[string]interface{}{
		recordIDPropKey: e.recordID,
		threadIDPropKey: e.threadID,
		rolePropKey:     string(e.role),
		statePropKey:    string(e.state),
	}

	if e.connectionID != "" {
		props[connectionIDPropKey] = e.connectionID
	}

	if e.err != nil {
		props[errorPropKey] = e.err.Error()
	}

	return props
}
