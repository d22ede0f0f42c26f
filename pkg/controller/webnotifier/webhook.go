/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	webhookRetries  = 2
	webhookInterval = 200 * time.Millisecond
)

// HTTPNotifier posts topic messages to webhook subscribers. Server errors and unreachable
// webhooks are retried, client errors are not.
type HTTPNotifier struct {
	urls    []string
	client  *http.Client
	backOff func() backoff.BackOff
}

// NewHTTPNotifier returns a notifier posting to the given webhook URLs.
func NewHTTPNotifier(webhookURLs []string) *HTTPNotifier {
	return &HTTPNotifier{
		urls:   webhookURLs,
		client: http.DefaultClient,
		backOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(webhookInterval), webhookRetries)
		},
	}
}

// Notify posts the topic message to every webhook. The first error is returned.
func (n *HTTPNotifier) Notify(topic string, message []byte) error {
	if topic == "" {
		return errors.New(emptyTopicErrMsg)
	}

	if len(message) == 0 {
		return errors.New(emptyMessageErrMsg)
	}

	topicMsg, err := PrepareTopicMessage(topic, message)
	if err != nil {
		return fmt.Errorf(failedToCreateErrMsg, err)
	}

	var allErrs error

	for _, webhookURL := range n.urls {
		webhookURL := webhookURL

		allErrs = appendError(allErrs, backoff.RetryNotify(
			func() error { return n.post(webhookURL, topicMsg) },
			n.backOff(),
			func(err error, d time.Duration) {
				logger.Debugf("webhook %s failed, retrying in %s: %v", webhookURL, d, err)
			},
		))
	}

	return allErrs
}

func (n *HTTPNotifier) post(destination string, message []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), notificationSendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewBuffer(message))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create new http post request for %s: %w", destination, err))
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post notification to %s: %w", destination, err)
	}

	defer closeResponse(resp.Body)

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated ||
		resp.StatusCode == http.StatusAccepted {
		logger.Debugf("notification sent to %s", destination)

		return nil
	}

	err = fmt.Errorf("notification was sent to %s, but %s was received", destination, resp.Status)
	if resp.StatusCode < http.StatusInternalServerError {
		return backoff.Permanent(err)
	}

	return err
}

func closeResponse(c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Errorf("failed to close response body: %v", err)
	}
}
