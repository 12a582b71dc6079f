package engine

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeSource(t *testing.T) {
	r := Range(100, 103)
	assert.Equal(t, []int{100, 101, 102, 103}, slices.Collect(r.IDs()))
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, "100-103", r.String())

	assert.Empty(t, slices.Collect(Range(110, 100).IDs()))
	assert.Zero(t, Range(110, 100).Len())
	assert.Equal(t, "7", Range(7, 7).String())

	top := Range(math.MaxInt-1, math.MaxInt)
	assert.Equal(t, []int{math.MaxInt - 1, math.MaxInt}, slices.Collect(top.IDs()))

	huge := Range(100, 999999999)
	assert.Equal(t, 999999900, huge.Len())
	var first []int
	for id := range huge.IDs() {
		first = append(first, id)
		if len(first) == 3 {
			break
		}
	}
	assert.Equal(t, []int{100, 101, 102}, first)
}

func TestListSource(t *testing.T) {
	l := List(102, 100, 102, 999)
	assert.Equal(t, []int{102, 100, 999}, slices.Collect(l.IDs()))
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, "102,100,102,999", l.String())
}

func TestIDSpans(t *testing.T) {
	var s IDSpans
	for _, id := range []int{103, 104, 105, 110, 101, 102} {
		s.Add(id)
	}
	assert.Equal(t, "103-105 110 101-102", s.String())
	assert.Equal(t, 6, s.Count())
	assert.Equal(t, []int{103, 104, 105, 110, 101, 102}, s.Expand())
}
