package enginetest

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/IntelCompH2020/ewbsearch/internal/engine"
)

// hit is one matching document with its (optional) score.
type hit struct {
	id     string
	doc    engine.Doc
	score  float64
	scored bool
}

// handleSelect evaluates the query subset the service emits:
// *:*, id:<v>, <field>:<v>, {!term f=F}tN, {!payload_check f=F payloads='X'
// op='gte'}tN and {!vp f=F vector="<payload>"}.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, col *collection) {
	params := r.URL.Query()

	hits, err := evalQuery(col, params.Get("q"))
	if err != nil {
		writeEngineError(w, http.StatusBadRequest, err.Error())
		return
	}

	for _, fq := range params["fq"] {
		if fq == "" {
			continue
		}
		filtered, err := evalQuery(col, fq)
		if err != nil {
			writeEngineError(w, http.StatusBadRequest, err.Error())
			return
		}
		keep := map[string]bool{}
		for _, h := range filtered {
			keep[h.id] = true
		}
		var next []hit
		for _, h := range hits {
			if keep[h.id] {
				next = append(next, h)
			}
		}
		hits = next
	}

	sortHits(hits, params.Get("sort"))

	numFound := len(hits)
	start := parseIntDefault(params.Get("start"), 0)
	rows := parseIntDefault(params.Get("rows"), 10)
	if start > len(hits) {
		start = len(hits)
	}
	end := start + rows
	if end > len(hits) {
		end = len(hits)
	}
	page := hits[start:end]

	fl := parseFieldList(params.Get("fl"))
	docs := make([]engine.Doc, 0, len(page))
	for _, h := range page {
		docs = append(docs, project(h, fl))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"responseHeader": okHeader(),
		"response": map[string]any{
			"numFound": numFound,
			"start":    start,
			"docs":     docs,
		},
	})
}

// evalQuery returns the matching hits in insertion order; scored queries are
// re-ranked by score descending.
func evalQuery(col *collection, q string) ([]hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		q = "*:*"
	}

	var hits []hit
	switch {
	case q == "*:*":
		for _, id := range col.order {
			hits = append(hits, hit{id: id, doc: col.docs[id]})
		}

	case strings.HasPrefix(q, "{!"):
		parsed, err := parseLocalQuery(q)
		if err != nil {
			return nil, err
		}
		for _, id := range col.order {
			doc := col.docs[id]
			h, match, err := parsed.match(id, doc)
			if err != nil {
				return nil, err
			}
			if match {
				hits = append(hits, h)
			}
		}
		if parsed.parser == "vp" {
			sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
		}

	default:
		field, value, ok := strings.Cut(q, ":")
		if !ok {
			return nil, fmt.Errorf("unsupported query syntax: %s", q)
		}
		value = strings.Trim(value, `"'`)
		value = strings.Trim(value, "()")
		for _, id := range col.order {
			doc := col.docs[id]
			if fieldMatches(doc[field], value) {
				hits = append(hits, hit{id: id, doc: doc})
			}
		}
	}

	return hits, nil
}

// fieldMatches compares the string form of a stored value with the query
// value; multivalued fields match when any element does.
func fieldMatches(stored any, value string) bool {
	switch v := stored.(type) {
	case nil:
		return false
	case []any:
		for _, item := range v {
			if fmt.Sprintf("%v", item) == value {
				return true
			}
		}
		return false
	case float64:
		// JSON numbers decode as float64; compare without a trailing .0
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10) == value
		}
		return fmt.Sprintf("%v", v) == value
	default:
		return fmt.Sprintf("%v", v) == value
	}
}

// localQuery is a parsed {!parser k=v …}suffix query.
type localQuery struct {
	parser string
	params map[string]string
	suffix string
}

// parseLocalQuery parses {!parser key='value' key="value" key=value}suffix.
func parseLocalQuery(q string) (*localQuery, error) {
	end := strings.Index(q, "}")
	if end < 0 {
		return nil, fmt.Errorf("unterminated local params: %s", q)
	}
	inner := q[2:end]
	suffix := q[end+1:]

	parts := splitQuoted(inner)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty local params: %s", q)
	}

	lq := &localQuery{parser: parts[0], params: map[string]string{}, suffix: suffix}
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("malformed local param %q in %s", part, q)
		}
		lq.params[key] = strings.Trim(value, `'"`)
	}
	return lq, nil
}

// splitQuoted splits on spaces outside single or double quotes.
func splitQuoted(s string) []string {
	var parts []string
	var cur strings.Builder
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			cur.WriteRune(r)
		case r == ' ':
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// match applies the parsed local query to one document.
func (lq *localQuery) match(id string, doc engine.Doc) (hit, bool, error) {
	field := lq.params["f"]
	payload, _ := doc[field].(string)
	weights := parsePayload(payload)

	switch lq.parser {
	case "term":
		_, ok := weights[lq.suffix]
		return hit{id: id, doc: doc}, ok, nil

	case "payload_check":
		if lq.params["op"] != "gte" {
			return hit{}, false, fmt.Errorf("unsupported payload_check op %q", lq.params["op"])
		}
		threshold, err := strconv.ParseFloat(lq.params["payloads"], 64)
		if err != nil {
			return hit{}, false, fmt.Errorf("unparseable payloads value %q", lq.params["payloads"])
		}
		weight, ok := weights[lq.suffix]
		return hit{id: id, doc: doc}, ok && weight >= threshold, nil

	case "vp":
		query := parsePayload(lq.params["vector"])
		if len(query) == 0 {
			return hit{}, false, fmt.Errorf("vp query without a vector")
		}
		if len(weights) == 0 {
			return hit{}, false, nil
		}
		score := scaledCosine(query, weights)
		return hit{id: id, doc: doc, score: score, scored: true}, true, nil

	default:
		return hit{}, false, fmt.Errorf("unsupported query parser %q", lq.parser)
	}
}

// parsePayload parses a weighted payload string "t0|433 t1|567" into a
// token→weight map.
func parsePayload(s string) map[string]float64 {
	weights := map[string]float64{}
	for _, token := range strings.Fields(s) {
		name, raw, ok := strings.Cut(token, "|")
		if !ok {
			continue
		}
		w, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		weights[name] = w
	}
	return weights
}

// scaledCosine scores a document against the query payload. The similarity
// is the cosine of the two weight vectors scaled to S*S so that a document
// matched against its own payload scores the full scale, like the engine's
// vector-payload plugin.
func scaledCosine(query, doc map[string]float64) float64 {
	var dot, qNorm, dNorm float64
	for token, qw := range query {
		qNorm += qw * qw
		if dw, ok := doc[token]; ok {
			dot += qw * dw
		}
	}
	for _, dw := range doc {
		dNorm += dw * dw
	}
	if qNorm == 0 || dNorm == 0 {
		return 0
	}

	var qSum float64
	for _, qw := range query {
		qSum += qw
	}
	scale := qSum * qSum

	return dot / (math.Sqrt(qNorm) * math.Sqrt(dNorm)) * scale
}

// sortHits applies an explicit "field asc|desc" sort; scored queries keep
// their score ordering when no sort is given.
func sortHits(hits []hit, sortParam string) {
	sortParam = strings.TrimSpace(sortParam)
	if sortParam == "" {
		return
	}
	parts := strings.Fields(sortParam)
	field := parts[0]
	desc := len(parts) > 1 && strings.EqualFold(parts[1], "desc")

	sort.SliceStable(hits, func(i, j int) bool {
		less := compareValues(hits[i].doc[field], hits[j].doc[field])
		if desc {
			return !less
		}
		return less
	})
}

// compareValues orders numerically when both sides parse as numbers.
func compareValues(a, b any) bool {
	as, bs := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	af, aerr := strconv.ParseFloat(as, 64)
	bf, berr := strconv.ParseFloat(bs, 64)
	if aerr == nil && berr == nil {
		return af < bf
	}
	return as < bs
}

func parseFieldList(fl string) []string {
	if strings.TrimSpace(fl) == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(fl, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// project restricts a hit to the requested field list; an empty list means
// all stored fields. Score is a pseudo-field available to scored queries.
func project(h hit, fl []string) engine.Doc {
	if len(fl) == 0 {
		out := cloneDoc(h.doc)
		if h.scored {
			out["score"] = h.score
		}
		return out
	}
	out := engine.Doc{}
	for _, f := range fl {
		if f == "score" {
			if h.scored {
				out["score"] = h.score
			}
			continue
		}
		if v, ok := h.doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
