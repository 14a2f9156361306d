package prompt

// Category labels of the relay sentence, in reveal order.
const (
	CategoryWhen  = "いつ"
	CategoryWhere = "どこで"
	CategoryWho   = "だれが"
	CategoryWhom  = "誰に"
	CategoryWhat  = "何をした"
	CategoryHow   = "どのように"
)

// Categories returns the sentence slots for a room of n players. Rooms of
// six or more repeat CategoryHow for every extra player, so a slot is
// identified by its index rather than by its label.
func Categories(n int) []string {
	switch {
	case n <= 2:
		return []string{CategoryWho, CategoryWhat}
	case n == 3:
		return []string{CategoryWhere, CategoryWho, CategoryWhat}
	case n == 4:
		return []string{CategoryWhen, CategoryWhere, CategoryWho, CategoryWhat}
	}

	cats := []string{CategoryWhen, CategoryWhere, CategoryWho, CategoryWhom, CategoryWhat}
	for i := 5; i < n; i++ {
		cats = append(cats, CategoryHow)
	}
	return cats
}

// Meta is display metadata for a category.
type Meta struct {
	Emoji string `json:"emoji"`
	Color string `json:"color"`
	Hint  string `json:"hint"`
}

var categoryMeta = map[string]Meta{
	CategoryWhen:  {Emoji: "🕐", Color: "#eab308", Hint: "例: 真夜中に、お正月に、100年後"},
	CategoryWhere: {Emoji: "📍", Color: "#22c55e", Hint: "例: 学校で、宇宙で、お風呂で"},
	CategoryWho:   {Emoji: "👤", Color: "#3b82f6", Hint: "例: 猫が、社長が、宇宙人が"},
	CategoryWhom:  {Emoji: "👥", Color: "#8b5cf6", Hint: "例: お母さんに、先生に、ライオンに"},
	CategoryWhat:  {Emoji: "⚡", Color: "#ef4444", Hint: "例: 踊った、爆発した、告白した"},
	CategoryHow:   {Emoji: "💫", Color: "#ec4899", Hint: "例: 全力で、こっそり、泣きながら"},
}

// MetaFor returns metadata for a category label, with a neutral fallback.
func MetaFor(category string) Meta {
	if m, ok := categoryMeta[category]; ok {
		return m
	}
	return Meta{Emoji: "❓", Color: "#6b7280"}
}
