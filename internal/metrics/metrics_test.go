package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGetIsSingleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}

func TestRecordCacheRead(t *testing.T) {
	m := Get()
	hits := testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("post"))
	misses := testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("post"))

	RecordCacheRead("post", true)
	RecordCacheRead("post", false)
	RecordCacheRead("post", false)

	assert.Equal(t, hits+1, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("post")))
	assert.Equal(t, misses+2, testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("post")))
}

func TestRecordMutation(t *testing.T) {
	m := Get()
	ok := testutil.ToFloat64(m.MutationsTotal.WithLabelValues("toggle_like", "success"))
	failed := testutil.ToFloat64(m.MutationsTotal.WithLabelValues("toggle_like", "error"))

	RecordMutation("toggle_like", nil)
	RecordMutation("toggle_like", errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(m.MutationsTotal.WithLabelValues("toggle_like", "success")))
	assert.Equal(t, failed+1, testutil.ToFloat64(m.MutationsTotal.WithLabelValues("toggle_like", "error")))
}
