/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logutil

import (
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"
)

// LogError logs a failed command action.
func LogError(logger *log.Log, command, action, errMsg string, data ...string) {
	logger.Errorf("command=[%s] action=[%s] %s errMsg=[%s]", command, action, data, errMsg)
}

// LogWarn logs a recoverable anomaly of a command action.
func LogWarn(logger *log.Log, command, action, msg string, data ...string) {
	logger.Warnf("command=[%s] action=[%s] %s msg=[%s]", command, action, data, msg)
}

// LogDebug logs the progress of a command action.
func LogDebug(logger *log.Log, command, action, msg string, data ...string) {
	logger.Debugf("command=[%s] action=[%s] %s msg=[%s]", command, action, data, msg)
}

// LogInfo logs the outcome of a command action.
func LogInfo(logger *log.Log, command, action, msg string, data ...string) {
	logger.Infof("command=[%s] action=[%s] %s msg=[%s]", command, action, data, msg)
}

// CreateKeyValueString formats a key value pair for the helpers above.
func CreateKeyValueString(key, val string) string {
	return fmt.Sprintf("%s=[%s]", key, val)
}
