/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package decorator

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAttachmentData_Fetch(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		data := AttachmentData{JSON: map[string]interface{}{"name": "Alice"}}

		raw, err := data.Fetch()
		require.NoError(t, err)
		require.JSONEq(t, `{"name":"Alice"}`, string(raw))
	})

	t.Run("base64", func(t *testing.T) {
		data := AttachmentData{Base64: base64.StdEncoding.EncodeToString([]byte(`{"a":1}`))}

		raw, err := data.Fetch()
		require.NoError(t, err)
		require.Equal(t, `{"a":1}`, string(raw))
	})

	t.Run("invalid base64", func(t *testing.T) {
		data := AttachmentData{Base64: "!!"}

		_, err := data.Fetch()
		require.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := (&AttachmentData{Links: []string{"http://example.com"}}).Fetch()
		require.EqualError(t, err, "no contents in this attachment")
	})
}

func TestNewJSONAttachmentData(t *testing.T) {
	data, err := NewJSONAttachmentData(map[string]int{"age": 55})
	require.NoError(t, err)

	raw, err := data.Fetch()
	require.NoError(t, err)
	require.JSONEq(t, `{"age":55}`, string(raw))

	_, err = NewJSONAttachmentData(make(chan int))
	require.Error(t, err)
}
