// Package finance stores transactions and savings goals in daily buckets
// under finance/{owner}.
package finance

import (
	"time"

	"github.com/syntrixbase/daybook/internal/bucket"
)

type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

var (
	TransactionLayout = bucket.Layout{
		Entity:        "transaction",
		Collection:    "finance",
		Subcollection: "dailyTransactions",
		Field:         "transactions",
	}
	GoalLayout = bucket.Layout{
		Entity:        "goal",
		Collection:    "finance",
		Subcollection: "dailyGoals",
		Field:         "goals",
	}
)

type Transaction struct {
	ID        string          `json:"id" validate:"required"`
	Date      string          `json:"date" validate:"required"`
	Amount    float64         `json:"amount" validate:"gt=0"`
	Type      TransactionType `json:"type" validate:"required,oneof=income expense"`
	Category  string          `json:"category" validate:"required,max=100"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (t Transaction) EntityID() string   { return t.ID }
func (t Transaction) BucketDate() string { return t.Date }

// Signed returns the amount with expenses negative.
func (t Transaction) Signed() float64 {
	if t.Type == Expense {
		return -t.Amount
	}
	return t.Amount
}

type Goal struct {
	ID            string    `json:"id" validate:"required"`
	Date          string    `json:"date" validate:"required"`
	Name          string    `json:"name" validate:"required,max=200"`
	GoalType      string    `json:"goalType" validate:"max=100"`
	TargetAmount  float64   `json:"targetAmount" validate:"gt=0"`
	CurrentAmount float64   `json:"currentAmount" validate:"gte=0"`
	Deadline      string    `json:"deadline,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (g Goal) EntityID() string   { return g.ID }
func (g Goal) BucketDate() string { return g.Date }

// Progress is the completed share of the target, capped at 1.
func (g Goal) Progress() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	p := g.CurrentAmount / g.TargetAmount
	if p > 1 {
		return 1
	}
	return p
}

// Reached reports whether the goal's target has been met.
func (g Goal) Reached() bool {
	return g.TargetAmount > 0 && g.CurrentAmount >= g.TargetAmount
}

type (
	TransactionStore = bucket.Store[Transaction]
	GoalStore        = bucket.Store[Goal]
)

func NewTransactionStore(deps bucket.Deps) (*TransactionStore, error) {
	return bucket.NewStore[Transaction](TransactionLayout, deps)
}

func NewGoalStore(deps bucket.Deps) (*GoalStore, error) {
	return bucket.NewStore[Goal](GoalLayout, deps)
}

// Balance totals a set of transactions.
type Balance struct {
	Income     float64            `json:"income"`
	Expense    float64            `json:"expense"`
	Net        float64            `json:"net"`
	ByCategory map[string]float64 `json:"byCategory"`
}

// Summarize computes income, expense and net totals. ByCategory holds the
// signed total of each category.
func Summarize(transactions []Transaction) Balance {
	b := Balance{ByCategory: make(map[string]float64)}
	for _, t := range transactions {
		switch t.Type {
		case Income:
			b.Income += t.Amount
		case Expense:
			b.Expense += t.Amount
		}
		b.ByCategory[t.Category] += t.Signed()
	}
	b.Net = b.Income - b.Expense
	return b
}
