package prompt

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/drawrelay/go/internal/models"
)

func makePlayers(n int) []models.Player {
	players := make([]models.Player, n)
	for i := range players {
		players[i] = models.Player{
			ID:        uuid.New(),
			Username:  fmt.Sprintf("p%d", i),
			TurnOrder: i,
			IsHost:    i == 0,
		}
	}
	return players
}

func TestCategories(t *testing.T) {
	assert.Equal(t, []string{"だれが", "何をした"}, Categories(2))
	assert.Equal(t, []string{"どこで", "だれが", "何をした"}, Categories(3))
	assert.Equal(t, []string{"いつ", "どこで", "だれが", "何をした"}, Categories(4))
	assert.Equal(t, []string{"いつ", "どこで", "だれが", "誰に", "何をした"}, Categories(5))
	assert.Equal(t, []string{"いつ", "どこで", "だれが", "誰に", "何をした", "どのように", "どのように"}, Categories(7))

	for n := models.MinPlayers; n <= models.MaxPlayers; n++ {
		assert.Len(t, Categories(n), n)
	}
}

func TestAssign_Deterministic(t *testing.T) {
	players := makePlayers(6)
	first := Assign("4821", players)

	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Assign("4821", players))
	}

	// Input order does not matter, only turn order does.
	reversed := make([]models.Player, len(players))
	for i, p := range players {
		reversed[len(players)-1-i] = p
	}
	assert.Equal(t, first, Assign("4821", reversed))
}

func TestAssign_EveryPlayerGetsOneSlot(t *testing.T) {
	for n := models.MinPlayers; n <= models.MaxPlayers; n++ {
		players := makePlayers(n)
		slots := Assign("1000", players)
		require.Len(t, slots, n)

		seenPlayers := map[uuid.UUID]bool{}
		for i, s := range slots {
			assert.Equal(t, i, s.TurnIndex)
			assert.False(t, seenPlayers[s.PlayerID])
			seenPlayers[s.PlayerID] = true
		}
	}
}

func TestShuffle_SeedsAreStable(t *testing.T) {
	players := makePlayers(5)
	assert.Equal(t, Shuffle(Seed("7777"), players), Shuffle(Seed("7777"), players))
	assert.NotEqual(t, Seed("1234"), Seed("4321"))
}

func TestCategoryFor_UnknownPlayer(t *testing.T) {
	_, ok := CategoryFor("1234", makePlayers(3), uuid.New())
	assert.False(t, ok)
}

func TestAssignDrawers_NeverTheSetter(t *testing.T) {
	for n := models.MinPlayers; n <= models.MaxPlayers; n++ {
		players := makePlayers(n)
		var prompts []models.Prompt
		for _, s := range Assign(fmt.Sprintf("%04d", 1000+n), players) {
			prompts = append(prompts, models.Prompt{
				ID:        uuid.New(),
				Category:  s.Category,
				SetterID:  s.PlayerID,
				TurnIndex: s.TurnIndex,
			})
		}

		assignments, err := AssignDrawers(prompts, players)
		require.NoError(t, err)
		require.Len(t, assignments, n)
		for i, as := range assignments {
			assert.NotEqual(t, prompts[i].SetterID, as.DrawerID, "n=%d prompt=%d", n, i)
		}
	}
}

func TestAssignDrawers_SinglePlayerHasNoDrawer(t *testing.T) {
	players := makePlayers(1)
	prompts := []models.Prompt{{ID: uuid.New(), SetterID: players[0].ID}}
	_, err := AssignDrawers(prompts, players)
	assert.Error(t, err)
}

func TestRevealedPrompts(t *testing.T) {
	prompts := []models.Prompt{
		{PromptText: "c", TurnIndex: 2},
		{PromptText: "a", TurnIndex: 0},
		{PromptText: "b", TurnIndex: 1},
	}
	got := RevealedPrompts(prompts, 1)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].PromptText)
	assert.Equal(t, "b", got[1].PromptText)
	assert.Len(t, RevealedPrompts(prompts, 5), 3)
}

func TestMetaFor(t *testing.T) {
	assert.Equal(t, "📍", MetaFor(CategoryWhere).Emoji)
	assert.Equal(t, "❓", MetaFor("unknown").Emoji)
}
