package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSortByTurnOrder_BreaksTies(t *testing.T) {
	joined := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-0000-0000-0000-000000000000")
	first, later := uuid.New(), uuid.New()

	players := []Player{
		{ID: high, TurnOrder: 1, CreatedAt: joined},
		{ID: low, TurnOrder: 1, CreatedAt: joined},
		{ID: later, TurnOrder: 1, CreatedAt: joined.Add(time.Second)},
		{ID: first, TurnOrder: 0, CreatedAt: joined.Add(time.Hour)},
	}

	// Input order does not matter.
	for range 5 {
		sorted := SortByTurnOrder(players)
		assert.Equal(t, first, sorted[0].ID)
		assert.Equal(t, low, sorted[1].ID)
		assert.Equal(t, high, sorted[2].ID)
		assert.Equal(t, later, sorted[3].ID)
		players[0], players[3] = players[3], players[0]
		players[1], players[2] = players[2], players[1]
	}
}
