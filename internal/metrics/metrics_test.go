package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capacitymesh/ccp/internal/ccptypes"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	r := New()
	r.AddCheckedHashes(ccptypes.LogicalCoreId(2), 1024)
	r.IncFoundsProofs(ccptypes.LogicalCoreId(2))
	r.SetEpochAgeSeconds(3.5)
	r.SetAllocatedLogicalCores(4)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ccp_checked_hashes")
	assert.Contains(t, body, `core="2"`)
	assert.Contains(t, body, "ccp_founds_proofs")
	assert.Contains(t, body, "ccp_epoch_age_seconds 3.5")
	assert.Contains(t, body, "ccp_allocated_logical_cores 4")
}
