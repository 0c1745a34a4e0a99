package membership

import (
	"context"
	"fmt"
	"log"
)

// EntitlementEvaluator decides whether a customer currently pays for access.
type EntitlementEvaluator interface {
	IsEntitled(ctx context.Context, customerID string) (bool, error)
}

// RoleSyncer converges a Discord member's role to the desired state.
type RoleSyncer interface {
	EnsureRole(ctx context.Context, discordUserID string, shouldHold bool, reason string) error
}

// Resyncer is the periodic sweep that re-evaluates every linked member
// against live billing state.
type Resyncer struct {
	svc       *Service
	evaluator EntitlementEvaluator
	syncer    RoleSyncer
}

// NewResyncer wires the sweep to its collaborators.
func NewResyncer(svc *Service, evaluator EntitlementEvaluator, syncer RoleSyncer) *Resyncer {
	return &Resyncer{svc: svc, evaluator: evaluator, syncer: syncer}
}

// Resync walks all identity links sequentially. A failing link is counted
// in ng and the sweep continues; only the initial listing can fail the run.
func (r *Resyncer) Resync(ctx context.Context) (ok, ng int, err error) {
	links, err := r.svc.AllLinks(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, link := range links {
		entitled, evalErr := r.evaluator.IsEntitled(ctx, link.StripeCustomerID)
		if evalErr != nil {
			log.Printf("[resync] entitlement check failed user=%s customer=%s: %v",
				link.DiscordUserID, link.StripeCustomerID, evalErr)
			ng++
			continue
		}

		reason := fmt.Sprintf("cron_resync entitle=%t", entitled)
		if syncErr := r.syncer.EnsureRole(ctx, link.DiscordUserID, entitled, reason); syncErr != nil {
			log.Printf("[resync] role sync failed user=%s: %v", link.DiscordUserID, syncErr)
			ng++
			continue
		}

		if touchErr := r.svc.TouchSync(ctx, link.DiscordUserID); touchErr != nil {
			log.Printf("[resync] touch failed user=%s: %v", link.DiscordUserID, touchErr)
		}
		ok++
	}

	log.Printf("[resync] sweep done ok=%d ng=%d total=%d", ok, ng, len(links))
	return ok, ng, nil
}
