package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapCodeEmbedsRequestDataAndCatchesExceptions(t *testing.T) {
	wrapped := wrapCode("response_data = {\"ok\": True}", map[string]any{"method": "POST"})
	require.Contains(t, wrapped, "request_data = json.loads(base64.b64decode(")
	require.Contains(t, wrapped, "except Exception as e:")
	require.Contains(t, wrapped, "print(json.dumps(response_data))")
}

func TestParseLastJSONLineExtractsFinalLine(t *testing.T) {
	output := "some log noise\n{\"ok\": true}\n"
	parsed, err := parseLastJSONLine(output)
	require.NoError(t, err)
	require.Equal(t, true, parsed["ok"])
}

func TestParseLastJSONLineErrorsOnGarbage(t *testing.T) {
	_, err := parseLastJSONLine("not json at all")
	require.Error(t, err)
}

func TestParseLastJSONLineErrorsOnEmptyOutput(t *testing.T) {
	_, err := parseLastJSONLine("")
	require.Error(t, err)
}
