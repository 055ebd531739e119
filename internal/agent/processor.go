package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fastjson"

	"github.com/observix/observix/internal/wire"
)

// processor transforms a raw batch of Events before it reaches a
// destination. The raw mode is the identity transform; indexed mode calls
// out to an indexer's /v1/normalize endpoint with the whole batch in one
// request, grounded on observix_agent/processors/indexed.py.
type processor interface {
	process(events []wire.Event, stats *PipelineStats) ([]wire.Event, error)
}

func buildProcessor(spec wire.PipelineProcessor) (processor, error) {
	switch spec.Mode {
	case "", wire.ProcessorRaw:
		return rawProcessor{}, nil
	case wire.ProcessorIndexed:
		return newIndexedProcessor(spec.Options)
	default:
		return nil, fmt.Errorf("unknown processor mode: %s", spec.Mode)
	}
}

type rawProcessor struct{}

func (rawProcessor) process(events []wire.Event, stats *PipelineStats) ([]wire.Event, error) {
	return events, nil
}

// indexedProcessor posts a batch's raw lines to an indexer in one request
// and merges each returned doc's fields back onto the corresponding
// event's Meta. On indexer failure it records the batch as failed and
// either passes every event through unmodified (fallback_to_raw=true, the
// default) or drops the whole batch.
type indexedProcessor struct {
	indexerURL    string
	profile       string
	fallbackToRaw bool
	client        *http.Client
}

func newIndexedProcessor(opts map[string]any) (*indexedProcessor, error) {
	url := optString(opts, "indexer_url", "")
	profile := optString(opts, "profile", "")
	if url == "" || profile == "" {
		return nil, fmt.Errorf("indexed processor requires options.indexer_url and options.profile")
	}
	timeoutSeconds := optInt(opts, "timeout_seconds", 3)
	return &indexedProcessor{
		indexerURL:    url,
		profile:       profile,
		fallbackToRaw: optBool(opts, "fallback_to_raw", true),
		client:        &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}, nil
}

type normalizeRequest struct {
	Profile string   `json:"profile"`
	Raw     []string `json:"raw"`
}

// process normalizes the whole batch in one /v1/normalize call. A failure
// anywhere in that call (transport, status, malformed body, or a doc count
// mismatch) is recorded on stats as a failed batch and returned as err
// regardless of whether fallback_to_raw still produces a usable out --
// callers must not treat a non-empty out as a clean flush when err is set,
// and need not record the failure on stats again.
func (p *indexedProcessor) process(events []wire.Event, stats *PipelineStats) ([]wire.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	raws := make([]string, len(events))
	for i, e := range events {
		raws[i] = e.Raw
	}

	docs, err := p.normalizeBatch(raws)
	if err != nil {
		stats.addFailedBatches(1)
		stats.recordErr(err.Error())
		if p.fallbackToRaw {
			return events, err
		}
		return nil, err
	}

	if len(docs) != len(events) {
		mismatchErr := wire.NewError(wire.CodeIndexerMalformed, fmt.Sprintf("indexer returned %d docs for a batch of %d events", len(docs), len(events)))
		stats.addFailedBatches(1)
		stats.recordErr(mismatchErr.Error())
		if p.fallbackToRaw {
			return events, mismatchErr
		}
		return nil, mismatchErr
	}

	out := make([]wire.Event, len(events))
	for i, e := range events {
		raw, meta := docs[i].ToEventMeta()
		next := e.Clone()
		if raw != "" {
			next.Raw = raw
		}
		for k, v := range meta {
			next.Meta[k] = v
		}
		out[i] = next
	}
	return out, nil
}

// normalizeBatch posts raws to the indexer's /v1/normalize endpoint and
// parses the {docs: [...]} response contract.
func (p *indexedProcessor) normalizeBatch(raws []string) ([]wire.Doc, error) {
	body, err := json.Marshal(normalizeRequest{Profile: p.profile, Raw: raws})
	if err != nil {
		return nil, wire.WrapError(wire.CodeIndexerMalformed, "marshal normalize request", err)
	}

	endpoint := p.indexerURL
	if !strings.HasSuffix(endpoint, "/v1/normalize") {
		endpoint = strings.TrimRight(endpoint, "/") + "/v1/normalize"
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, wire.WrapError(wire.CodeIndexerDown, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, wire.WrapError(wire.CodeIndexerDown, "post normalize", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, wire.NewError(wire.CodeIndexerDown, fmt.Sprintf("indexer returned %d", resp.StatusCode))
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, wire.WrapError(wire.CodeIndexerMalformed, "read response body", err)
	}

	v, err := fastjson.ParseBytes(buf.Bytes())
	if err != nil {
		return nil, wire.WrapError(wire.CodeIndexerMalformed, "parse response json", err)
	}

	docsVal := v.Get("docs")
	if docsVal == nil {
		return nil, wire.NewError(wire.CodeIndexerMalformed, "response is missing the docs field")
	}
	items, err := docsVal.Array()
	if err != nil {
		return nil, wire.WrapError(wire.CodeIndexerMalformed, "docs was not an array", err)
	}

	docs := make([]wire.Doc, len(items))
	for i, item := range items {
		doc, err := docFromFastjson(item)
		if err != nil {
			return nil, err
		}
		docs[i] = doc
	}
	return docs, nil
}

func docFromFastjson(v *fastjson.Value) (wire.Doc, error) {
	obj, err := v.Object()
	if err != nil {
		return nil, wire.WrapError(wire.CodeIndexerMalformed, "doc was not an object", err)
	}
	doc := make(wire.Doc, obj.Len())
	obj.Visit(func(key []byte, val *fastjson.Value) {
		doc[string(key)] = fastjsonToGo(val)
	})
	return doc, nil
}

func fastjsonToGo(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return v.GetFloat64()
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeNull:
		return nil
	case fastjson.TypeObject:
		obj := v.GetObject()
		m := make(map[string]any, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			m[string(key)] = fastjsonToGo(val)
		})
		return m
	case fastjson.TypeArray:
		arr, _ := v.Array()
		out := make([]any, len(arr))
		for i, item := range arr {
			out[i] = fastjsonToGo(item)
		}
		return out
	default:
		return nil
	}
}
