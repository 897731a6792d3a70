package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Weekly     BillingCycle = "weekly"
	Monthly    BillingCycle = "monthly"
	Quarterly  BillingCycle = "quarterly"
	SemiAnnual BillingCycle = "semiannual"
	Annual     BillingCycle = "annual"
)

const (
	CategoryStreaming Category = "streaming"
	CategoryMusic     Category = "music"
	CategorySoftware  Category = "software"
	CategoryGaming    Category = "gaming"
	CategoryFitness   Category = "fitness"
	CategoryNews      Category = "news"
	CategoryCloud     Category = "cloud"
	CategoryUtilities Category = "utilities"
	CategoryOther     Category = "other"
)

// Categories lists every category in declaration order. This order is the
// tie-break used when chart slices have equal amounts.
var Categories = []Category{
	CategoryStreaming,
	CategoryMusic,
	CategorySoftware,
	CategoryGaming,
	CategoryFitness,
	CategoryNews,
	CategoryCloud,
	CategoryUtilities,
	CategoryOther,
}

// BillingCycles lists every supported cadence.
var BillingCycles = []BillingCycle{Weekly, Monthly, Quarterly, SemiAnnual, Annual}

type (
	BillingCycle string

	Category string

	// PriceChange is one entry of a subscription's append-only price history.
	// PreviousPrice is nil only for the initial entry recorded at creation.
	PriceChange struct {
		Price         float64
		PreviousPrice *float64
		ChangedAt     time.Time
		Reason        string
	}

	// Member is someone the subscription cost is conceptually split with.
	// Purely informational: totals always count the full cost.
	Member struct {
		Name string
	}

	Subscription struct {
		ID           string // assigned at creation, immutable
		Name         string
		Cost         float64 // in Currency, per billing cycle
		Currency     string  // ISO 4217 code from the currency catalog
		Cycle        BillingCycle
		StartDate    time.Time // anchor for all occurrence computation
		Category     Category
		IsActive     bool
		IsArchived   bool
		IsTrial      bool
		TrialEndDate *time.Time
		PriceHistory []PriceChange
		SharedWith   []Member
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}
)

var (
	ErrEmptyName       = errors.New("empty subscription name")
	ErrNegativeCost    = errors.New("cost must not be negative")
	ErrEmptyCurrency   = errors.New("empty currency code")
	ErrInvalidCycle    = errors.New("invalid billing cycle")
	ErrInvalidCategory = errors.New("invalid category")
	ErrZeroStartDate   = errors.New("start date cannot be zero")
)

// IsValid returns true if the billing cycle is one of the five supported
// cadences.
func (c BillingCycle) IsValid() bool {
	switch c {
	case Weekly, Monthly, Quarterly, SemiAnnual, Annual:
		return true
	default:
		return false
	}
}

func (c BillingCycle) String() string { return string(c) }

// IsValid returns true if the category is a member of the closed set.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// Index returns the declaration-order position of the category, or
// len(Categories) for unknown values so they sort last.
func (c Category) Index() int {
	for i, known := range Categories {
		if c == known {
			return i
		}
	}
	return len(Categories)
}

func (s Subscription) Validate() error {
	if len(strings.TrimSpace(s.Name)) == 0 {
		return ErrEmptyName
	}
	if len(s.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if s.Cost < 0 {
		return ErrNegativeCost
	}
	if strings.TrimSpace(s.Currency) == "" {
		return ErrEmptyCurrency
	}
	if !s.Cycle.IsValid() {
		return ErrInvalidCycle
	}
	if !s.Category.IsValid() {
		return ErrInvalidCategory
	}
	if s.StartDate.IsZero() {
		return ErrZeroStartDate
	}
	return nil
}

// Counted reports whether the subscription participates in spend totals.
func (s Subscription) Counted() bool {
	return s.IsActive && !s.IsArchived
}

// CurrentPrice returns the most recent price history entry, or nil when the
// history is empty (which only happens before creation completes).
func (s Subscription) CurrentPrice() *PriceChange {
	if len(s.PriceHistory) == 0 {
		return nil
	}
	return &s.PriceHistory[len(s.PriceHistory)-1]
}

// Clone returns a deep copy so snapshots cannot be mutated through shared
// slices.
func (s Subscription) Clone() Subscription {
	out := s
	if s.PriceHistory != nil {
		out.PriceHistory = make([]PriceChange, len(s.PriceHistory))
		copy(out.PriceHistory, s.PriceHistory)
	}
	if s.SharedWith != nil {
		out.SharedWith = make([]Member, len(s.SharedWith))
		copy(out.SharedWith, s.SharedWith)
	}
	if s.TrialEndDate != nil {
		t := *s.TrialEndDate
		out.TrialEndDate = &t
	}
	return out
}
