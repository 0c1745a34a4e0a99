package billing

import "testing"

func TestIsStudentEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"taro@example.ac.jp", true},
		{"student@u-tokyo.ac.jp", true},
		{"kid@city.ed.jp", true},
		{"grad@mit.edu", true},
		{"dev@example.com", false},
		{"edu@example.co.jp", false},
		{"someone@academic.education", false},
		{"no-at-sign", false},
		{"", false},
		{"  Taro@Example.AC.JP  ", true},
	}

	for _, tt := range tests {
		if got := IsStudentEmail(tt.email); got != tt.want {
			t.Errorf("IsStudentEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestSelectPriceID(t *testing.T) {
	plans := PricePlan{Monthly: "price_m", Yearly: "price_y", Student: "price_s"}

	tests := []struct {
		name      string
		requested string
		email     string
		want      string
	}{
		{"explicit request wins", "price_y", "taro@example.ac.jp", "price_y"},
		{"student email defaults to student plan", "", "taro@example.ac.jp", "price_s"},
		{"regular email defaults to monthly", "", "dev@example.com", "price_m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectPriceID(plans, tt.requested, tt.email); got != tt.want {
				t.Errorf("SelectPriceID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelectPriceIDWithoutStudentPlan(t *testing.T) {
	plans := PricePlan{Monthly: "price_m"}
	if got := SelectPriceID(plans, "", "taro@example.ac.jp"); got != "price_m" {
		t.Errorf("SelectPriceID() = %q, want price_m", got)
	}
}
