package insight

import (
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/validation"

	"github.com/shopspring/decimal"
)

// Options configures the optional scoring rules.
type Options struct {
	SubscriptionWastePenalty bool `json:"subscriptionWastePenalty"`
}

// Engine is the facade consumed by services and the CLI. It validates its
// inputs and holds nothing besides its options, so it is safe for concurrent use.
type Engine struct {
	opts Options
}

// NewEngine creates an engine with the given options.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Options returns the engine configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// ComputeWellness scores the profile against all supplied transactions.
func (e *Engine) ComputeWellness(profile *domain.UserProfile, txns []domain.Transaction) (domain.WellnessResult, error) {
	if err := validateProfile(profile); err != nil {
		return domain.WellnessResult{}, err
	}
	if err := validateTransactions(txns); err != nil {
		return domain.WellnessResult{}, err
	}
	agg := Aggregate(txns, nil)
	return Score(WellnessInput{
		MonthlyIncome:     profile.MonthlyIncome,
		EssentialExpenses: profile.TotalEssentials(),
		TotalSpend:        agg.TotalSpend,
	}, ScoreOptions{SubscriptionWastePenalty: e.opts.SubscriptionWastePenalty}), nil
}

// GenerateActionPlan ranks recommendations for the profile.
func (e *Engine) GenerateActionPlan(profile *domain.UserProfile, txns []domain.Transaction, subs []domain.Subscription) (domain.ActionPlan, error) {
	if err := validateProfile(profile); err != nil {
		return domain.ActionPlan{}, err
	}
	if err := validateTransactions(txns); err != nil {
		return domain.ActionPlan{}, err
	}
	if err := validateSubscriptions(subs); err != nil {
		return domain.ActionPlan{}, err
	}
	return Recommend(RecommendationInput{
		MonthlyIncome:     profile.MonthlyIncome,
		EssentialExpenses: profile.TotalEssentials(),
		Spending:          Aggregate(txns, nil),
		Subscriptions:     subs,
	}), nil
}

// ComputeAffordability derives caps from the profile income. discretionarySpend
// may be negative; currentRent may not.
func (e *Engine) ComputeAffordability(profile *domain.UserProfile, discretionarySpend, currentRent decimal.Decimal) (domain.Affordability, error) {
	if err := validateProfile(profile); err != nil {
		return domain.Affordability{}, err
	}
	if currentRent.IsNegative() {
		return domain.Affordability{}, &domain.ErrInvalidInput{Field: "currentRent", Reason: "must be >= 0"}
	}
	return ComputeAffordability(AffordabilityInput{
		MonthlyIncome:      profile.MonthlyIncome,
		DiscretionarySpend: discretionarySpend,
		CurrentRent:        currentRent,
	}), nil
}

// Evaluate runs every component over one consistent snapshot.
func (e *Engine) Evaluate(snap *domain.Snapshot) (*domain.InsightReport, error) {
	if snap == nil {
		return nil, &domain.ErrInvalidInput{Field: "snapshot", Reason: "is required"}
	}
	if err := validateProfile(snap.Profile); err != nil {
		return nil, err
	}
	if err := validateTransactions(snap.Transactions); err != nil {
		return nil, err
	}
	if err := validateSubscriptions(snap.Subscriptions); err != nil {
		return nil, err
	}
	for i := range snap.Accounts {
		if err := validation.Element("accounts", i, snap.Accounts[i]); err != nil {
			return nil, err
		}
	}

	profile := snap.Profile
	essentials := profile.TotalEssentials()
	spending := Aggregate(snap.Transactions, snap.Window)

	lowUsage := len(LowUsage(snap.Subscriptions))
	wellness := Score(WellnessInput{
		MonthlyIncome:             profile.MonthlyIncome,
		EssentialExpenses:         essentials,
		TotalSpend:                spending.TotalSpend,
		LowUsageSubscriptionCount: &lowUsage,
	}, ScoreOptions{SubscriptionWastePenalty: e.opts.SubscriptionWastePenalty})

	plan := Recommend(RecommendationInput{
		MonthlyIncome:     profile.MonthlyIncome,
		EssentialExpenses: essentials,
		Spending:          spending,
		Subscriptions:     snap.Subscriptions,
	})

	afford := ComputeAffordability(AffordabilityInput{
		MonthlyIncome:      profile.MonthlyIncome,
		DiscretionarySpend: wellness.DiscretionarySpend,
		CurrentRent:        profile.CurrentRent(),
	})

	return &domain.InsightReport{
		UserID:        profile.UserID,
		Spending:      spending,
		Wellness:      wellness,
		ActionPlan:    plan,
		Affordability: afford,
		Subscriptions: ReviewSubscriptions(snap.Subscriptions),
		TotalAssets:   domain.TotalAssets(snap.Accounts),
		Window:        snap.Window,
		GeneratedAt:   snap.FetchedAt,
	}, nil
}

func validateProfile(p *domain.UserProfile) error {
	if p == nil {
		return &domain.ErrInvalidInput{Field: "profile", Reason: "is required"}
	}
	return validation.Struct(p)
}

func validateTransactions(txns []domain.Transaction) error {
	for i := range txns {
		if err := validation.Element("transactions", i, txns[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateSubscriptions(subs []domain.Subscription) error {
	for i := range subs {
		if err := validation.Element("subscriptions", i, subs[i]); err != nil {
			return err
		}
	}
	return nil
}
