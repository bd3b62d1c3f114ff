package yahoo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"stock_sync/internal/platform/externalapi/yahoo/dto"
)

func parseResult(t *testing.T, raw string) dto.ChartResult {
	t.Helper()
	var r dto.ChartResult
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	return r
}
