package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLabels_toPrometheusLabels(t *testing.T) {
	tests := []struct {
		name     string
		labels   Labels
		expected prometheus.Labels
	}{
		{
			name:     "empty labels",
			labels:   Labels{},
			expected: prometheus.Labels{},
		},
		{
			name: "all labels set",
			labels: Labels{
				Provider:    "sqs",
				Environment: "production",
				Region:      "eu-west-1",
			},
			expected: prometheus.Labels{
				"provider":    "sqs",
				"environment": "production",
				"region":      "eu-west-1",
			},
		},
		{
			name: "partial labels",
			labels: Labels{
				Provider: "sqs",
			},
			expected: prometheus.Labels{
				"provider": "sqs",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.labels.toPrometheusLabels())
		})
	}
}

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	m.RecordCall("get", nil, 0.1)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, metricFamilies)
}

func TestNewWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := NewWithLabels(reg, Labels{Provider: "sqs", Region: "eu-west-1"})
	require.NoError(t, err)

	m.RecordCall("put", nil, 0.2)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() != "queue_provider_calls_total" {
			continue
		}
		found = true
		require.NotEmpty(t, mf.GetMetric())

		labelMap := make(map[string]string)
		for _, label := range mf.GetMetric()[0].GetLabel() {
			labelMap[label.GetName()] = label.GetValue()
		}
		require.Equal(t, "sqs", labelMap["provider"])
		require.Equal(t, "eu-west-1", labelMap["region"])
		require.Equal(t, "put", labelMap["operation"])
	}
	require.True(t, found, "calls_total not gathered")
}

func TestNew_RegistrationError(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := New(reg)
	require.NoError(t, err)

	// Second registration should fail (duplicate metrics)
	m, err := New(reg)
	require.Nil(t, m, "expected nil metrics on duplicate registration")

	var alreadyRegistered prometheus.AlreadyRegisteredError
	require.ErrorAs(t, err, &alreadyRegistered)
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.IncError(ErrTypeDecode)
		m.RecordCall("put", nil, 0.5)
		m.AddMessagesSent(1, 0)
		m.RecordReceive(true)
		m.IncAcknowledged()
		m.RecordCacheLookup(true)
	})
}

func TestMetrics_RecordCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordCall("put", nil, 0.1)
	m.RecordCall("put", nil, 0.2)
	m.RecordCall("put", errors.New("throttled"), 0.3)

	require.Equal(t, float64(2), testutil.ToFloat64(m.calls.WithLabelValues("put", StatusSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.calls.WithLabelValues("put", StatusError)))
	require.Equal(t, 1, testutil.CollectAndCount(m.callDuration))
}

func TestMetrics_MessageFlow(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.AddMessagesSent(8, 2)
	m.RecordReceive(true)
	m.RecordReceive(false)
	m.RecordReceive(false)
	m.IncAcknowledged()

	require.Equal(t, float64(8), testutil.ToFloat64(m.messagesSent))
	require.Equal(t, float64(2), testutil.ToFloat64(m.batchEntriesFailed))
	require.Equal(t, float64(1), testutil.ToFloat64(m.messagesReceived))
	require.Equal(t, float64(2), testutil.ToFloat64(m.emptyReceives))
	require.Equal(t, float64(1), testutil.ToFloat64(m.messagesAcknowledged))
}

func TestMetrics_CacheAndErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordCacheLookup(false)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(true)
	m.IncError(ErrTypeCorruptedMessage)
	m.IncError(ErrTypeDecode)
	m.IncError(ErrTypeDecode)

	require.Equal(t, float64(2), testutil.ToFloat64(m.cacheHits))
	require.Equal(t, float64(1), testutil.ToFloat64(m.cacheMisses))
	require.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues(ErrTypeCorruptedMessage)))
	require.Equal(t, float64(2), testutil.ToFloat64(m.errors.WithLabelValues(ErrTypeDecode)))
}
