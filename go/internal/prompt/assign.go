package prompt

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"

	"github.com/google/uuid"

	"github.com/mcdev12/drawrelay/go/internal/models"
)

// pcgStream is the fixed PCG increment shared by every client.
const pcgStream = 0x9e3779b97f4a7c15

// Seed derives the shuffle seed from the room code with FNV-1a.
func Seed(roomCode string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(roomCode))
	return h.Sum64()
}

// Shuffle returns players in turn order permuted by a Fisher-Yates shuffle
// driven by a PCG generator. Every client that sees the same players and
// seed gets the same permutation.
func Shuffle(seed uint64, players []models.Player) []models.Player {
	shuffled := models.SortByTurnOrder(players)
	rng := rand.New(rand.NewPCG(seed, pcgStream))
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}

// Slot is one player's prompt-setting assignment.
type Slot struct {
	PlayerID  uuid.UUID `json:"player_id"`
	Category  string    `json:"category"`
	TurnIndex int       `json:"turn_index"`
}

// Assign maps every player of the room to a category slot.
func Assign(roomCode string, players []models.Player) []Slot {
	cats := Categories(len(players))
	shuffled := Shuffle(Seed(roomCode), players)

	slots := make([]Slot, 0, len(shuffled))
	for i, p := range shuffled {
		if i >= len(cats) {
			break
		}
		slots = append(slots, Slot{PlayerID: p.ID, Category: cats[i], TurnIndex: i})
	}
	return slots
}

// CategoryFor returns the slot assigned to playerID. ok is false when the
// player is not part of the assignment.
func CategoryFor(roomCode string, players []models.Player, playerID uuid.UUID) (Slot, bool) {
	for _, s := range Assign(roomCode, players) {
		if s.PlayerID == playerID {
			return s, true
		}
	}
	return Slot{}, false
}

// SubmittedCount counts prompts with distinct slots.
func SubmittedCount(prompts []models.Prompt) int {
	seen := make(map[int]struct{}, len(prompts))
	for _, p := range prompts {
		seen[p.TurnIndex] = struct{}{}
	}
	return len(seen)
}

// IsComplete reports whether every category slot has a prompt.
func IsComplete(prompts []models.Prompt, categories []string) bool {
	return len(categories) > 0 && SubmittedCount(prompts) >= len(categories)
}

// DrawerAssignment pairs a prompt with its drawer.
type DrawerAssignment struct {
	PromptID uuid.UUID
	DrawerID uuid.UUID
}

// AssignDrawers rotates through the players, skipping each prompt's setter:
// the drawer of the i-th prompt by turn index is eligible[i % len(eligible)].
func AssignDrawers(prompts []models.Prompt, players []models.Player) ([]DrawerAssignment, error) {
	ordered := make([]models.Prompt, len(prompts))
	copy(ordered, prompts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TurnIndex < ordered[j].TurnIndex
	})
	sorted := models.SortByTurnOrder(players)

	out := make([]DrawerAssignment, 0, len(ordered))
	for i, p := range ordered {
		eligible := make([]models.Player, 0, len(sorted))
		for _, pl := range sorted {
			if pl.ID != p.SetterID {
				eligible = append(eligible, pl)
			}
		}
		if len(eligible) == 0 {
			return nil, fmt.Errorf("no eligible drawer for prompt %s", p.ID)
		}
		out = append(out, DrawerAssignment{PromptID: p.ID, DrawerID: eligible[i%len(eligible)].ID})
	}
	return out, nil
}

// RevealedPrompts returns the prompts visible at a turn, in reveal order.
func RevealedPrompts(prompts []models.Prompt, turn int) []models.Prompt {
	out := make([]models.Prompt, 0, len(prompts))
	for _, p := range prompts {
		if p.TurnIndex <= turn {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TurnIndex < out[j].TurnIndex
	})
	return out
}

// DrawerPrompts returns the prompts a player was assigned to draw.
func DrawerPrompts(prompts []models.Prompt, playerID uuid.UUID) []models.Prompt {
	var out []models.Prompt
	for _, p := range prompts {
		if p.DrawerID != nil && *p.DrawerID == playerID {
			out = append(out, p)
		}
	}
	return out
}
