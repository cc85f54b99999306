package plans

import "fmt"

// PlanAdmin is a privileged plan assigned manually, never sold through checkout.
const PlanAdmin = "admin"

// MaxEmailsPerDomain caps mailboxes on a single domain regardless of plan.
const MaxEmailsPerDomain = 10

// Plan describes a purchasable subscription tier
type Plan struct {
	Name       string
	EmailQuota int // mailboxes allowed per domain
}

var catalog = map[string]Plan{
	"basic":    {Name: "basic", EmailQuota: 1},
	"pro":      {Name: "pro", EmailQuota: 5},
	"business": {Name: "business", EmailQuota: 10},
}

// Get returns the plan definition for a purchasable plan name
func Get(name string) (Plan, bool) {
	p, ok := catalog[name]
	return p, ok
}

// EmailQuota returns the per-domain mailbox quota for a plan.
// The admin plan is unrestricted up to the hard per-domain cap.
func EmailQuota(plan string) int {
	if plan == PlanAdmin {
		return MaxEmailsPerDomain
	}
	if p, ok := catalog[plan]; ok {
		return p.EmailQuota
	}
	return 0
}

// Privileged reports whether a plan bypasses payment flows
func Privileged(plan string) bool {
	return plan == PlanAdmin
}

// ValidInterval reports whether s is a known billing interval
func ValidInterval(s string) bool {
	return s == "monthly" || s == "yearly"
}

// PriceTable maps plan and interval names to Stripe price IDs in both
// directions. Built once at startup from config.
type PriceTable struct {
	byPlan  map[string]map[string]string
	byPrice map[string]planInterval
}

type planInterval struct {
	Plan     string
	Interval string
}

// NewPriceTable validates that every purchasable plan has a price ID for
// every interval and returns the lookup table.
func NewPriceTable(prices map[string]map[string]string) (*PriceTable, error) {
	t := &PriceTable{
		byPlan:  make(map[string]map[string]string, len(catalog)),
		byPrice: make(map[string]planInterval),
	}
	for name := range catalog {
		intervals, ok := prices[name]
		if !ok {
			return nil, fmt.Errorf("no price IDs configured for plan %q", name)
		}
		t.byPlan[name] = make(map[string]string, 2)
		for _, interval := range []string{"monthly", "yearly"} {
			id := intervals[interval]
			if id == "" {
				return nil, fmt.Errorf("missing price ID for plan %q interval %q", name, interval)
			}
			t.byPlan[name][interval] = id
			t.byPrice[id] = planInterval{Plan: name, Interval: interval}
		}
	}
	return t, nil
}

// PriceID returns the Stripe price ID for a plan and interval
func (t *PriceTable) PriceID(plan, interval string) (string, bool) {
	intervals, ok := t.byPlan[plan]
	if !ok {
		return "", false
	}
	id, ok := intervals[interval]
	return id, ok
}

// Resolve maps a Stripe price ID back to its plan and interval
func (t *PriceTable) Resolve(priceID string) (plan, interval string, ok bool) {
	pi, ok := t.byPrice[priceID]
	return pi.Plan, pi.Interval, ok
}
