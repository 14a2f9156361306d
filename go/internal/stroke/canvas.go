package stroke

import (
	"sort"

	"github.com/google/uuid"

	"github.com/mcdev12/drawrelay/go/internal/models"
)

// Canvas is the ordered, deduplicated stroke list of a room. It is the
// canonical canvas state; pixels are a function of it.
type Canvas struct {
	strokes []models.Stroke
	seen    map[uuid.UUID]struct{}
}

// NewCanvas returns an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{seen: make(map[uuid.UUID]struct{})}
}

// Replay builds a canvas from strokes in any order, with duplicates.
// Replaying the same list twice, or a list containing itself twice,
// yields the same canvas.
func Replay(strokes []models.Stroke) *Canvas {
	c := NewCanvas()
	for _, s := range strokes {
		c.Apply(s)
	}
	return c
}

// Apply adds a stroke unless its id was seen. Strokes stay ordered by seq,
// so a late delivery lands where it belongs. It reports whether the canvas
// changed.
func (c *Canvas) Apply(s models.Stroke) bool {
	if _, ok := c.seen[s.ID]; ok {
		return false
	}
	c.seen[s.ID] = struct{}{}

	i := sort.Search(len(c.strokes), func(i int) bool {
		return less(s, c.strokes[i])
	})
	c.strokes = append(c.strokes, models.Stroke{})
	copy(c.strokes[i+1:], c.strokes[i:])
	c.strokes[i] = s
	return true
}

// Strokes returns a copy of the ordered strokes.
func (c *Canvas) Strokes() []models.Stroke {
	out := make([]models.Stroke, len(c.strokes))
	copy(out, c.strokes)
	return out
}

// Len is the number of distinct strokes.
func (c *Canvas) Len() int {
	return len(c.strokes)
}

// StrokesBy counts the strokes a player contributed.
func (c *Canvas) StrokesBy(playerID uuid.UUID) int {
	n := 0
	for _, s := range c.strokes {
		if s.PlayerID == playerID {
			n++
		}
	}
	return n
}

// less orders by seq, then creation time, then id so the order is total.
func less(a, b models.Stroke) bool {
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}
