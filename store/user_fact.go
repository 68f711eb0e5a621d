package store

// FactCategory groups user facts.
type FactCategory string

const (
	FactCategoryPersonal   FactCategory = "personal"
	FactCategoryPreference FactCategory = "preference"
	FactCategoryHabit      FactCategory = "habit"
	FactCategoryWork       FactCategory = "work"
	FactCategoryContext    FactCategory = "context"
)

// FactCategories lists the categories in display order.
var FactCategories = []FactCategory{
	FactCategoryPersonal,
	FactCategoryPreference,
	FactCategoryHabit,
	FactCategoryWork,
	FactCategoryContext,
}

// UserFact is something learned about the user, unique by (Category, Key).
type UserFact struct {
	ID              int64
	Category        FactCategory
	Key             string
	Value           string
	Confidence      float64
	SourceMessageID *int64
	CreatedTs       int64
	UpdatedTs       int64
}

type UpsertUserFact struct {
	Category        FactCategory
	Key             string
	Value           string
	Confidence      float64
	SourceMessageID *int64
	Ts              int64
}

type FindUserFact struct {
	Category *FactCategory
}
