/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package model

import "github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/decorator"

// ProblemReport problem report definition (DIDCommV1).
type ProblemReport struct {
	Type        string            `json:"@type"`
	ID          string            `json:"@id"`
	Description Code              `json:"description"`
	Thread      *decorator.Thread `json:"~thread,omitempty"`
	WebRedirect interface{}       `json:"~web-redirect,omitempty"`
}

// Code represents a problem report code with an optional human readable text.
type Code struct {
	Code string `json:"code"`
	En   string `json:"en,omitempty"`
}

// ProblemReportV2 problem report definition (DIDCommV2).
type ProblemReportV2 struct {
	Type   string              `json:"type,omitempty"`
	ID     string              `json:"id,omitempty"`
	Thread string              `json:"thid,omitempty"`
	PThID  string              `json:"pthid,omitempty"`
	Body   ProblemReportV2Body `json:"body,omitempty"`
}

// ProblemReportV2Body represents body for ProblemReportV2.
type ProblemReportV2Body struct {
	Code        string      `json:"code,omitempty"`
	Comment     string      `json:"comment,omitempty"`
	Args        []string    `json:"args,omitempty"`
	EscalateTo  string      `json:"escalate_to,omitempty"`
	WebRedirect interface{} `json:"~web-redirect,omitempty"`
}

// Text returns the human readable description of the report.
func (p *ProblemReport) Text() string {
	if p.Description.En != "" {
		return p.Description.En
	}

	return p.Description.Code
}

// Text returns the human readable description of the report.
func (p *ProblemReportV2) Text() string {
	if p.Body.Comment != "" {
		return p.Body.Comment
	}

	return p.Body.Code
}
