package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
	"leaderUrl": "https://leader.example",
	"helperUrl": "https://helper.example",
	"metrics": {
		"visit": {
			"aggregationConfig": {"taskId": "t-visit", "type": "count", "timePrecision": 3600, "vdafConfig": {}}
		},
		"country": {
			"aggregationConfig": {"taskId": "t-country", "type": "histogram", "timePrecision": 3600,
				"vdafConfig": {"numBuckets": 250, "proofChunkSize": 16}},
			"metricsInfo": {"countryIndex": 42}
		},
		"os": {
			"aggregationConfig": {"taskId": "t-os", "type": "histogram", "timePrecision": 60,
				"vdafConfig": {"numBuckets": 4, "proofChunkSize": 2}},
			"metricsInfo": {"labels": ["Windows", "MacOS", "Linux", "Other"]}
		},
		"session": {
			"aggregationConfig": {"taskId": "t-session", "type": "histogram", "timePrecision": 60,
				"vdafConfig": {"numBuckets": 5, "proofChunkSize": 2, "sumBitLength": null}},
			"metricsInfo": {"sessionInterval": 10}
		},
		"browser": null
	}
}`

func TestDecodeGlobalConfig(t *testing.T) {
	gc, issues, err := DecodeGlobalConfig([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Empty(t, issues)

	assert.Equal(t, "https://leader.example", gc.LeaderURL)
	assert.Equal(t, "https://helper.example", gc.HelperURL)
	assert.Equal(t, []string{MetricCountry, MetricOS, MetricSession, MetricVisit}, gc.MetricNames())

	t.Run("count без метаданных", func(t *testing.T) {
		visit := gc.Metric(MetricVisit)
		require.NotNil(t, visit)
		assert.Equal(t, KindCount, visit.Aggregation.Kind)
		assert.Equal(t, "t-visit", visit.Aggregation.TaskID)
		assert.Equal(t, int64(3600), visit.Aggregation.TimePrecisionSeconds)
		assert.Nil(t, visit.Info)
		assert.Nil(t, visit.Aggregation.Vdaf.NumBuckets)
	})

	t.Run("country", func(t *testing.T) {
		country := gc.Metric(MetricCountry)
		require.NotNil(t, country)
		assert.Equal(t, CountryInfo{CountryIndex: 42}, country.Info)
		require.NotNil(t, country.Aggregation.Vdaf.NumBuckets)
		assert.Equal(t, 250, *country.Aggregation.Vdaf.NumBuckets)
		assert.Equal(t, 16, *country.Aggregation.Vdaf.ProofChunkSize)
	})

	t.Run("метки", func(t *testing.T) {
		assert.Equal(t, []string{"Windows", "MacOS", "Linux", "Other"}, gc.Metric(MetricOS).Labels())
		assert.Nil(t, gc.Metric(MetricVisit).Labels())
	})

	t.Run("session", func(t *testing.T) {
		session := gc.Metric(MetricSession)
		require.NotNil(t, session)
		assert.Equal(t, SessionInfo{BucketIntervalSeconds: 10}, session.Info)
		assert.Nil(t, session.Aggregation.Vdaf.SumBitLength)
	})

	t.Run("известные метрики присутствуют даже если не настроены", func(t *testing.T) {
		for _, name := range WellKnownMetrics {
			_, ok := gc.Metrics[name]
			assert.True(t, ok, name)
		}
		assert.Nil(t, gc.Metric(MetricBrowser))
		assert.Nil(t, gc.Metric(MetricDevice))
		assert.Nil(t, gc.Metric("unknown"))
	})
}

func TestDecodeGlobalConfig_DropsMalformedMetric(t *testing.T) {
	doc := `{
		"leaderUrl": "https://leader.example",
		"helperUrl": "https://helper.example",
		"metrics": {
			"visit": {"aggregationConfig": {"taskId": "t-visit", "type": "count", "timePrecision": 3600, "vdafConfig": {}}},
			"os": {"aggregationConfig": {"taskId": "t-os", "type": "histogram", "timePrecision": 60, "vdafConfig": {}},
				"metricsInfo": {"labels": []}},
			"country": {"aggregationConfig": {"taskId": 7, "type": "histogram", "timePrecision": 60, "vdafConfig": {}}},
			"session": {"aggregationConfig": {"taskId": "t-s", "type": "histogram", "timePrecision": 60, "vdafConfig": {}},
				"metricsInfo": {"bucketIntervalSeconds": 0}},
			"engaged": {"aggregationConfig": {"taskId": "t-e", "type": "count", "timePrecision": 1.5, "vdafConfig": {}}},
			"Sign up": {"aggregationConfig": {"taskId": "t-su", "type": "count", "timePrecision": 60,
				"vdafConfig": {"numBuckets": -1}}}
		}
	}`

	gc, issues, err := DecodeGlobalConfig([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{MetricVisit}, gc.MetricNames())

	names := make([]string, 0, len(issues))
	for _, issue := range issues {
		names = append(names, issue.Metric)
		assert.Contains(t, issue.Error(), "invalid metric configuration for "+issue.Metric)
	}
	assert.Equal(t, []string{"Sign up", MetricCountry, MetricEngaged, MetricOS, MetricSession}, names)
}

func TestDecodeGlobalConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "не JSON", doc: `not json`},
		{name: "массив", doc: `[]`},
		{name: "нет leaderUrl", doc: `{"helperUrl": "h", "metrics": {}}`},
		{name: "пустой helperUrl", doc: `{"leaderUrl": "l", "helperUrl": "", "metrics": {}}`},
		{name: "leaderUrl не строка", doc: `{"leaderUrl": 1, "helperUrl": "h", "metrics": {}}`},
		{name: "metrics null", doc: `{"leaderUrl": "l", "helperUrl": "h", "metrics": null}`},
		{name: "metrics массив", doc: `{"leaderUrl": "l", "helperUrl": "h", "metrics": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gc, _, err := DecodeGlobalConfig([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Nil(t, gc)
		})
	}
}

func TestGlobalConfig_NilSafe(t *testing.T) {
	var gc *GlobalConfig
	assert.Nil(t, gc.Metric(MetricVisit))
	assert.Nil(t, gc.MetricNames())
}
