package merger

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/metrico/qryn-ai/writer/metric"
	"github.com/metrico/qryn-ai/writer/model"
	"github.com/metrico/qryn-ai/writer/store"
	"github.com/metrico/qryn-ai/writer/utils/logger"
)

const (
	DefaultTTL       = 60 * time.Second
	DefaultKeyPrefix = "otel_merge"

	kindTrace = "trace"
	kindLogs  = "logs"
)

// merge outcomes, used as metric labels
const (
	resultCached      = "cached"
	resultAccumulated = "accumulated"
	resultMerged      = "merged"
	resultStoreError  = "store_error"
	resultNoIDs       = "no_ids"
)

// Merger joins the span half and the log half of one LLM call through a
// shared store. Whichever half arrives last gets the merged properties, the
// first one is cached until then or until the TTL drops it.
type Merger struct {
	store  store.Store
	ttl    time.Duration
	prefix string
}

func New(s store.Store, ttl time.Duration, prefix string) *Merger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Merger{store: s, ttl: ttl, prefix: prefix}
}

func (m *Merger) TraceKey(traceID, spanID string) string {
	return m.key(kindTrace, traceID, spanID)
}

func (m *Merger) LogsKey(traceID, spanID string) string {
	return m.key(kindLogs, traceID, spanID)
}

func (m *Merger) key(kind, traceID, spanID string) string {
	return m.prefix + ":" + kind + ":" + traceID + ":" + spanID
}

// Merge offers props for (traceID, spanID). It returns the merged properties
// and true once both halves met, or nil and false when props were cached to
// wait for the partner. Store failures degrade to emitting props unmerged.
func (m *Merger) Merge(ctx context.Context, traceID, spanID string, props model.Properties,
	isTrace bool) (model.Properties, bool) {
	direction := kindLogs
	if isTrace {
		direction = kindTrace
	}
	if traceID == "" || spanID == "" {
		metric.MergeOutcomes.WithLabelValues(direction, resultNoIDs).Inc()
		return props, true
	}
	encoded, err := model.EncodeProperties(props)
	if err != nil {
		return m.fallback(direction, props, errors.Wrap(err, "encode properties"))
	}
	own, err := model.DecodeProperties(encoded)
	if err != nil {
		return m.fallback(direction, props, errors.Wrap(err, "decode properties"))
	}

	traceKey, logsKey := m.TraceKey(traceID, spanID), m.LogsKey(traceID, spanID)
	var (
		result  model.Properties
		outcome string
	)
	start := time.Now()
	err = m.store.Update(ctx, []string{traceKey, logsKey}, func(tx store.Tx) error {
		var err error
		if isTrace {
			result, outcome, err = m.offerTrace(tx, traceKey, logsKey, own, encoded)
		} else {
			result, outcome, err = m.offerLogs(tx, traceKey, logsKey, own, encoded)
		}
		return err
	})
	metric.StoreLatency.Observe(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		return m.fallback(direction, props, err)
	}
	metric.MergeOutcomes.WithLabelValues(direction, outcome).Inc()
	return result, outcome == resultMerged
}

func (m *Merger) offerTrace(tx store.Tx, traceKey, logsKey string, own model.Properties,
	encoded []byte) (model.Properties, string, error) {
	logs, ok, err := getProps(tx, logsKey)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		tx.SetEX(traceKey, m.ttl, encoded)
		return nil, resultCached, nil
	}
	tx.Del(logsKey, traceKey)
	return overlay(logs, own), resultMerged, nil
}

func (m *Merger) offerLogs(tx store.Tx, traceKey, logsKey string, own model.Properties,
	encoded []byte) (model.Properties, string, error) {
	existing, hasLogs, err := getProps(tx, logsKey)
	if err != nil {
		return nil, "", err
	}
	accumulated := own
	if hasLogs {
		accumulated = existing.Accumulate(own)
	}
	trace, hasTrace, err := getProps(tx, traceKey)
	if err != nil {
		return nil, "", err
	}
	if hasTrace {
		tx.Del(logsKey, traceKey)
		return overlay(accumulated, trace), resultMerged, nil
	}
	if !hasLogs {
		tx.SetEX(logsKey, m.ttl, encoded)
		return nil, resultCached, nil
	}
	data, err := model.EncodeProperties(accumulated)
	if err != nil {
		return nil, "", errors.Wrap(err, "encode accumulated properties")
	}
	tx.SetEX(logsKey, m.ttl, data)
	return nil, resultAccumulated, nil
}

func (m *Merger) fallback(direction string, props model.Properties, err error) (model.Properties, bool) {
	logger.Error("merge store failure, emitting unmerged: ", err)
	metric.MergeOutcomes.WithLabelValues(direction, resultStoreError).Inc()
	return props, true
}

// OnExpired counts merge halves dropped by the store before a partner came.
func (m *Merger) OnExpired(key string) {
	rest, ok := strings.CutPrefix(key, m.prefix+":")
	if !ok {
		return
	}
	kind, _, _ := strings.Cut(rest, ":")
	if kind != kindTrace && kind != kindLogs {
		return
	}
	metric.ExpiredMerges.WithLabelValues(kind).Inc()
	logger.Debug("merge state expired without partner: ", key)
}

func getProps(tx store.Tx, key string) (model.Properties, bool, error) {
	data, ok, err := tx.Get(key)
	if err != nil || !ok {
		return nil, false, err
	}
	props, err := model.DecodeProperties(data)
	if err != nil {
		return nil, false, errors.Wrap(err, "decode cached "+key)
	}
	return props, true, nil
}

// overlay returns {...base, ...top}.
func overlay(base, top model.Properties) model.Properties {
	res := make(model.Properties, len(base)+len(top))
	for k, v := range base {
		res[k] = v
	}
	for k, v := range top {
		res[k] = v
	}
	return res
}
