package billing

import "strings"

// studentDomainSuffixes are the academic email domains eligible for the
// discounted student plan.
var studentDomainSuffixes = []string{".ac.jp", ".edu", ".ed.jp"}

// IsStudentEmail reports whether the address belongs to an academic domain.
func IsStudentEmail(email string) bool {
	addr := strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return false
	}
	domain := addr[at+1:]
	for _, suffix := range studentDomainSuffixes {
		if strings.HasSuffix(domain, suffix) || domain == strings.TrimPrefix(suffix, ".") {
			return true
		}
	}
	return false
}

// PricePlan names the configured plans for templates and price selection.
type PricePlan struct {
	Monthly string
	Yearly  string
	Student string
}

// SelectPriceID resolves the checkout price: an explicit request wins,
// student emails default to the student plan, everyone else gets monthly.
func SelectPriceID(plans PricePlan, requested, email string) string {
	if p := strings.TrimSpace(requested); p != "" {
		return p
	}
	if IsStudentEmail(email) && plans.Student != "" {
		return plans.Student
	}
	return plans.Monthly
}
