// Package query holds the fixed catalogue of topic-model queries and the
// executor that validates, paginates, runs, and post-processes them.
package query

import (
	"net/url"
	"strings"

	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// template is one catalogue entry: engine select parameters with
// positional {} placeholders. Customization substitutes arguments in
// order across q, then fl; every placeholder must be consumed.
type template struct {
	q    string
	fl   string
	rows string
}

// catalogue is the process-wide immutable query table. Q13 is a reserved
// slot that was never defined; the executor rejects it by name. Q2 runs
// against the registry, not a corpus collection.
var catalogue = map[string]template{
	"q1":  {q: "id:{}", fl: "doctpc_{}"},
	"q2":  {q: "corpus_name:{}", fl: "fields"},
	"q3":  {q: "*:*", rows: "0"},
	"q4":  {q: "{!payload_check f=doctpc_{} payloads='{}' op='gte'}t{}", fl: "id,doctpc_{}"},
	"q5":  {q: `{!vp f=doctpc_{} vector="{}"}`, fl: "id,score"},
	"q6":  {q: "id:{}", fl: "{}"},
	"q7":  {q: "{}:{}", fl: "id"},
	"q8":  {q: "*:*", fl: "id,tpc_labels"},
	"q9":  {q: "{!term f=doctpc_{}}t{}", fl: "id,doctpc_{}"},
	"q10": {q: "*:*", fl: "id,betas,vocab,alphas,topic_entropy,topic_coherence,ndocs_active,tpc_descriptions,tpc_labels,coords"},
	"q11": {q: "id:t{}", fl: "betas"},
	"q12": {q: `{!vp f=betas vector="{}"}`, fl: "id,score"},
	"q14": {q: `{!vp f=doctpc_{} vector="{}"}`, fl: "id,score"},
	"q15": {q: "id:{}", fl: "all_lemmas"},
}

const placeholder = "{}"

// customize renders a catalogue entry into concrete select parameters,
// substituting args positionally. A leftover placeholder or a leftover
// argument is a programming error, not caller input.
func customize(id string, args ...string) (url.Values, error) {
	tmpl, ok := catalogue[id]
	if !ok {
		return nil, ewberrors.Newf(ewberrors.ErrCodeUnknownQuery,
			"query %s is not in the catalogue", id)
	}

	rest := args
	params := url.Values{}
	for _, part := range []struct{ key, value string }{
		{"q", tmpl.q},
		{"fl", tmpl.fl},
		{"rows", tmpl.rows},
	} {
		if part.value == "" {
			continue
		}
		filled, remaining, err := fill(id, part.value, rest)
		if err != nil {
			return nil, err
		}
		rest = remaining
		params.Set(part.key, filled)
	}
	if len(rest) > 0 {
		return nil, ewberrors.Newf(ewberrors.ErrCodeTemplateUnresolved,
			"query %s received %d surplus arguments", id, len(rest))
	}
	return params, nil
}

func fill(id, tmpl string, args []string) (string, []string, error) {
	var b strings.Builder
	for {
		i := strings.Index(tmpl, placeholder)
		if i < 0 {
			b.WriteString(tmpl)
			return b.String(), args, nil
		}
		if len(args) == 0 {
			return "", nil, ewberrors.Newf(ewberrors.ErrCodeTemplateUnresolved,
				"query %s has an unbound placeholder in %q", id, tmpl)
		}
		b.WriteString(tmpl[:i])
		b.WriteString(args[0])
		tmpl = tmpl[i+len(placeholder):]
		args = args[1:]
	}
}
