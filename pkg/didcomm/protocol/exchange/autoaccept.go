/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package exchange

import (
	"context"
	"fmt"
)

// AutoAccept is the policy deciding whether the answer to an inbound message is sent automatically.
type AutoAccept string

// Auto-accept policies, in increasing automation.
const (
	AutoAcceptNever           AutoAccept = "never"
	AutoAcceptContentApproved AutoAccept = "contentApproved"
	AutoAcceptAlways          AutoAccept = "always"
)

// ParseAutoAccept parses a policy name, the empty string yields the empty policy.
func ParseAutoAccept(s string) (AutoAccept, error) {
	switch a := AutoAccept(s); a {
	case "", AutoAcceptNever, AutoAcceptContentApproved, AutoAcceptAlways:
		return a, nil
	default:
		return "", NewValidationError("unknown auto accept policy %q", s)
	}
}

// composeAutoAccept returns the first policy set, never if none is.
func composeAutoAccept(policies ...AutoAccept) AutoAccept {
	for _, p := range policies {
		if p != "" {
			return p
		}
	}

	return AutoAcceptNever
}

// shouldAutoAccept decides, after an inbound message of the stage was persisted, whether the
// record is answered automatically.
func (s *Service) shouldAutoAccept(ctx context.Context, rec *Record, stage Stage, override AutoAccept,
	incoming *Message) (bool, error) {
	switch composeAutoAccept(override, rec.AutoAccept, s.autoAccept) {
	case AutoAcceptAlways:
		return true, nil
	case AutoAcceptContentApproved:
		return s.contentApproved(ctx, rec, stage, incoming)
	default:
		return false, nil
	}
}

// contentApproved compares the incoming content with what we sent last on the thread.
// An exchange we never sent anything on is never approved.
func (s *Service) contentApproved(ctx context.Context, rec *Record, stage Stage, incoming *Message) (bool, error) {
	counterpart := s.protocol.Counterpart(rec.Role)

	if ours := rec.latestPreviewFrom(rec.Role); ours != nil && len(incoming.Preview) > 0 {
		if !PreviewEqual(ours.Attributes, incoming.Preview) {
			logger.Debugf("record %s: preview differs from the one sent at %s stage", rec.ID, ours.Stage)

			return false, nil
		}
	}

	if len(incoming.Attachments) == 0 {
		return false, nil
	}

	for _, a := range incoming.Attachments {
		format := s.format(a.Format)
		if format == nil {
			return false, nil
		}

		ours := rec.LatestPayloadFrom(format.Key(), rec.Role)

		ok, err := format.ShouldAutoRespond(ctx, &AutoRespondRequest{
			Stage:    stage,
			Role:     rec.Role,
			Record:   rec,
			Ours:     ours,
			Incoming: a.Data,
		})
		if err != nil {
			return false, wrapFormatError(format.Key(), stage, fmt.Errorf("auto respond from %s: %w", counterpart, err))
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}
