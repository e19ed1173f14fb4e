package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// известные метрики
const (
	MetricVisit   = "visit"
	MetricCountry = "country"
	MetricOS      = "os"
	MetricBrowser = "browser"
	MetricDevice  = "device"
	MetricSession = "session"
	MetricEngaged = "engaged"
)

// Kind тип агрегации задачи
type Kind string

const (
	KindCount     Kind = "count"
	KindHistogram Kind = "histogram"
)

var ErrInvalidConfig = errors.New("invalid configuration format")

// GlobalConfig конфигурация домена, неизменна после получения.
// nil в Metrics означает что метрика не настроена.
type GlobalConfig struct {
	LeaderURL string
	HelperURL string
	Metrics   map[string]*MetricConfig
}

// Metric возвращает конфиг метрики или nil
func (gc *GlobalConfig) Metric(name string) *MetricConfig {
	if gc == nil {
		return nil
	}
	return gc.Metrics[name]
}

// MetricNames отсортированный список настроенных метрик
func (gc *GlobalConfig) MetricNames() []string {
	if gc == nil {
		return nil
	}
	names := make([]string, 0, len(gc.Metrics))
	for name, mc := range gc.Metrics {
		if mc != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

type MetricConfig struct {
	Name        string
	Aggregation AggregationParams
	Info        MetricsInfo
}

// Labels метки категориальной метрики, nil для остальных
func (mc *MetricConfig) Labels() []string {
	if li, ok := mc.Info.(LabelsInfo); ok {
		return li.Labels
	}
	return nil
}

type AggregationParams struct {
	TaskID               string
	Kind                 Kind
	TimePrecisionSeconds int64
	Vdaf                 VdafParams
}

type VdafParams struct {
	SumBitLength   *int
	NumBuckets     *int
	ProofChunkSize *int
}

// MetricsInfo доменные метаданные метрики.
// Варианты: LabelsInfo, SessionInfo, CountryInfo.
type MetricsInfo interface {
	metricsInfo()
}

// LabelsInfo упорядоченные метки, последняя работает как "Other"
type LabelsInfo struct {
	Labels []string
}

type SessionInfo struct {
	BucketIntervalSeconds float64
}

type CountryInfo struct {
	CountryIndex int
}

func (LabelsInfo) metricsInfo()  {}
func (SessionInfo) metricsInfo() {}
func (CountryInfo) metricsInfo() {}

// MetricIssue метрика отброшенная при валидации
type MetricIssue struct {
	Metric string
	Err    error
}

func (mi MetricIssue) Error() string {
	return fmt.Sprintf("invalid metric configuration for %s: %v", mi.Metric, mi.Err)
}

// WellKnownMetrics метрики, которые всегда присутствуют в Metrics (пусть и nil)
var WellKnownMetrics = []string{MetricOS, MetricBrowser, MetricDevice, MetricSession, MetricVisit, MetricCountry}

// DecodeGlobalConfig разбирает и валидирует документ конфигурации.
// Ошибка верхнего уровня фатальна, ошибка отдельной метрики - нет:
// метрика становится nil и попадает в issues.
func DecodeGlobalConfig(data []byte) (*GlobalConfig, []MetricIssue, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if top == nil {
		return nil, nil, fmt.Errorf("%w: document is null", ErrInvalidConfig)
	}

	leader, ok := decodeString(top["leaderUrl"])
	if !ok || leader == "" {
		return nil, nil, fmt.Errorf("%w: leaderUrl is required", ErrInvalidConfig)
	}
	helper, ok := decodeString(top["helperUrl"])
	if !ok || helper == "" {
		return nil, nil, fmt.Errorf("%w: helperUrl is required", ErrInvalidConfig)
	}

	var rawMetrics map[string]json.RawMessage
	if isNull(top["metrics"]) || json.Unmarshal(top["metrics"], &rawMetrics) != nil {
		return nil, nil, fmt.Errorf("%w: metrics must be an object", ErrInvalidConfig)
	}

	gc := &GlobalConfig{
		LeaderURL: leader,
		HelperURL: helper,
		Metrics:   make(map[string]*MetricConfig, len(rawMetrics)+len(WellKnownMetrics)),
	}
	for _, name := range WellKnownMetrics {
		gc.Metrics[name] = nil
	}

	var issues []MetricIssue
	for name, raw := range rawMetrics {
		if isNull(raw) {
			gc.Metrics[name] = nil
			continue
		}
		mc, err := decodeMetric(name, raw)
		if err != nil {
			gc.Metrics[name] = nil
			issues = append(issues, MetricIssue{Metric: name, Err: err})
			continue
		}
		gc.Metrics[name] = mc
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].Metric < issues[j].Metric })

	return gc, issues, nil
}

func decodeMetric(name string, raw json.RawMessage) (*MetricConfig, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.New("entry is not an object")
	}

	agg, err := decodeAggregation(fields["aggregationConfig"])
	if err != nil {
		return nil, fmt.Errorf("aggregationConfig: %w", err)
	}

	info, err := decodeMetricsInfo(name, fields["metricsInfo"])
	if err != nil {
		return nil, fmt.Errorf("metricsInfo: %w", err)
	}

	return &MetricConfig{Name: name, Aggregation: agg, Info: info}, nil
}

func decodeAggregation(raw json.RawMessage) (AggregationParams, error) {
	var fields map[string]json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &fields) != nil {
		return AggregationParams{}, errors.New("must be an object")
	}

	taskID, ok := decodeString(fields["taskId"])
	if !ok {
		return AggregationParams{}, errors.New("taskId must be a string")
	}
	kind, ok := decodeString(fields["type"])
	if !ok {
		return AggregationParams{}, errors.New("type must be a string")
	}
	precision, ok := decodeNumber(fields["timePrecision"])
	if !ok || precision <= 0 || precision != math.Trunc(precision) {
		return AggregationParams{}, errors.New("timePrecision must be a positive integer")
	}

	var vdaf map[string]json.RawMessage
	if isNull(fields["vdafConfig"]) || json.Unmarshal(fields["vdafConfig"], &vdaf) != nil {
		return AggregationParams{}, errors.New("vdafConfig must be an object")
	}

	params := AggregationParams{
		TaskID:               taskID,
		Kind:                 Kind(kind),
		TimePrecisionSeconds: int64(precision),
	}
	for key, dst := range map[string]**int{
		"sumBitLength":   &params.Vdaf.SumBitLength,
		"numBuckets":     &params.Vdaf.NumBuckets,
		"proofChunkSize": &params.Vdaf.ProofChunkSize,
	} {
		v, ok := decodeOptionalInt(vdaf[key])
		if !ok {
			return AggregationParams{}, fmt.Errorf("vdafConfig.%s must be a non-negative integer or null", key)
		}
		*dst = v
	}

	return params, nil
}

func decodeMetricsInfo(name string, raw json.RawMessage) (MetricsInfo, error) {
	switch name {
	case MetricOS, MetricBrowser, MetricDevice:
		var info struct {
			Labels []json.RawMessage `json:"labels"`
		}
		if isNull(raw) || json.Unmarshal(raw, &info) != nil || len(info.Labels) == 0 {
			return nil, errors.New("labels must be a non-empty array")
		}
		labels := make([]string, 0, len(info.Labels))
		for _, l := range info.Labels {
			s, ok := decodeString(l)
			if !ok {
				return nil, errors.New("labels must be strings")
			}
			labels = append(labels, s)
		}
		return LabelsInfo{Labels: labels}, nil

	case MetricSession:
		var fields map[string]json.RawMessage
		if isNull(raw) || json.Unmarshal(raw, &fields) != nil {
			return nil, errors.New("must be an object")
		}
		intervalRaw, ok := fields["sessionInterval"]
		if !ok {
			intervalRaw = fields["bucketIntervalSeconds"]
		}
		interval, ok := decodeNumber(intervalRaw)
		if !ok || interval <= 0 {
			return nil, errors.New("sessionInterval must be a positive number")
		}
		return SessionInfo{BucketIntervalSeconds: interval}, nil

	case MetricCountry:
		var fields map[string]json.RawMessage
		if isNull(raw) || json.Unmarshal(raw, &fields) != nil {
			return nil, errors.New("must be an object")
		}
		idx, ok := decodeOptionalInt(fields["countryIndex"])
		if !ok || idx == nil {
			return nil, errors.New("countryIndex must be a non-negative integer")
		}
		return CountryInfo{CountryIndex: *idx}, nil
	}

	// visit, engaged и пользовательские события метаданных не требуют
	return nil, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeNumber(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

// отсутствие или null - валидно (nil, true)
func decodeOptionalInt(raw json.RawMessage) (*int, bool) {
	if isNull(raw) {
		return nil, true
	}
	f, ok := decodeNumber(raw)
	if !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return nil, false
	}
	v := int(f)
	return &v, true
}
