package model

import (
	"math/rand"
	"strconv"
	"strings"
)

// Encoder turns non-negative unit-sum vectors into weighted-payload
// strings whose integer weights sum to exactly the payload scale. The
// random tie-break source is seeded so encodings are reproducible.
type Encoder struct {
	scale int
	rng   *rand.Rand
}

// NewEncoder creates an Encoder with the given payload scale and seed.
func NewEncoder(scale int, seed int64) *Encoder {
	return &Encoder{scale: scale, rng: rand.New(rand.NewSource(seed))}
}

// Scale returns the payload scale.
func (e *Encoder) Scale() int {
	return e.scale
}

// TopicToken names topic i in a payload string.
func TopicToken(i int) string {
	return "t" + strconv.Itoa(i)
}

// quantize floors each coordinate to an integer share of the scale, then
// bumps randomly chosen non-zero entries until the weights sum to the
// scale. Entries that floored to zero stay zero; the relative order of the
// largest coordinates is preserved.
func (e *Encoder) quantize(v []float64) []int {
	x := make([]int, len(v))
	sum := 0
	var positive []int
	for i, f := range v {
		if f <= 0 {
			continue
		}
		x[i] = int(f * float64(e.scale))
		sum += x[i]
		if x[i] > 0 {
			positive = append(positive, i)
		}
	}

	// All coordinates floored to zero: distribute over every non-zero
	// input so the weights can still reach the scale.
	if len(positive) == 0 {
		for i, f := range v {
			if f > 0 {
				positive = append(positive, i)
			}
		}
		if len(positive) == 0 {
			return x
		}
	}

	for sum < e.scale {
		x[positive[e.rng.Intn(len(positive))]]++
		sum++
	}
	return x
}

// Encode renders a vector as a space-separated payload string, naming
// coordinate i with token(i) and omitting zero weights. An all-zero vector
// encodes to the empty string.
func (e *Encoder) Encode(v []float64, token func(int) string) string {
	x := e.quantize(v)

	var b strings.Builder
	first := true
	for i, w := range x {
		if w == 0 {
			continue
		}
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteString(token(i))
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(w))
	}
	return b.String()
}

// EncodeTopics renders a doc-topic vector with t0, t1, … topic tokens.
func (e *Encoder) EncodeTopics(v []float64) string {
	return e.Encode(v, TopicToken)
}
