package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
)

const envelopeSchema = `{
	"type": "object",
	"required": ["success", "message"],
	"properties": {
		"success": {"type": "boolean"},
		"message": {"type": "string", "minLength": 1},
		"meta": {"type": "object"},
		"details": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["field", "rule"]
			}
		}
	}
}`

var envelope = jsonschema.MustCompileString("envelope.json", envelopeSchema)

// decodeResponse reads the body, checks it against the envelope schema and unmarshals it.
func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var document interface{}
	require.NoError(t, json.Unmarshal(data, &document))
	require.NoError(t, envelope.Validate(document), string(data))

	require.NoError(t, json.Unmarshal(data, target))
}

func jsonBody(t *testing.T, payload interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return strings.NewReader(string(data))
}

type envelopeResponse struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Meta    map[string]interface{}   `json:"meta"`
	Details []map[string]interface{} `json:"details"`
}
