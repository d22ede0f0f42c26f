/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package command

import (
	"encoding/json"
	"io"

	"github.com/hyperledger/aries-framework-go/spi/log"
)

// WriteNillableResponse writes v to w as JSON, a nil v is written as an empty object.
// Write failures are logged, the command has already completed by then.
func WriteNillableResponse(w io.Writer, v interface{}, l log.Logger) {
	if v == nil {
		v = struct{}{}
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		l.Errorf("failed to write command response: %s", err)
	}
}
