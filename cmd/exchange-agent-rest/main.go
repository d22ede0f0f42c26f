/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package main is the exchange agent REST server.
//
// It hosts the out-of-band, issue-credential and present-proof controller API together with the
// DIDComm HTTP inbound endpoint of one agent.
package main

import (
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/spf13/cobra"

	"github.com/hyperledger/aries-exchange-go/cmd/exchange-agent-rest/startcmd"
)

var logger = log.New("exchange-agent-rest")

func main() {
	rootCmd := &cobra.Command{
		Use: "exchange-agent-rest",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	startCmd, err := startcmd.Cmd(&startcmd.HTTPServer{})
	if err != nil {
		logger.Fatalf(err.Error())
	}

	rootCmd.AddCommand(startCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("Failed to run exchange-agent-rest: %s", err)
	}
}
