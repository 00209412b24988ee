package corpus

import (
	"sort"
	"strconv"
	"strings"
)

// vocabulary assigns dense integer ids to tokens in order of first
// appearance across the whole corpus pass. The ids fix the emission order
// of bag-of-words pairs so re-runs of the same corpus produce identical
// documents.
type vocabulary struct {
	ids map[string]int
}

func newVocabulary() *vocabulary {
	return &vocabulary{ids: map[string]int{}}
}

func (v *vocabulary) id(token string) int {
	if id, ok := v.ids[token]; ok {
		return id
	}
	id := len(v.ids)
	v.ids[token] = id
	return id
}

// Len returns the number of distinct tokens seen so far.
func (v *vocabulary) Len() int {
	return len(v.ids)
}

// bagOfWords renders the tokens of one document as space-separated
// "word|count" pairs ordered by vocabulary id. Empty documents yield "".
func (v *vocabulary) bagOfWords(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}

	counts := map[int]int{}
	words := map[int]string{}
	for _, token := range tokens {
		id := v.id(token)
		counts[id]++
		words[id] = token
	}

	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(words[id])
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(counts[id]))
	}
	return b.String()
}
