// Package alert evaluates vital-sign readings against scoped threshold rules.
package alert

import "fmt"

// Thresholds holds optional limits per metric. A nil limit disables its check.
type Thresholds struct {
	HRHigh   *float64 `json:"hrHigh,omitempty"`
	HRLow    *float64 `json:"hrLow,omitempty"`
	SBPHigh  *float64 `json:"sbpHigh,omitempty"`
	SBPLow   *float64 `json:"sbpLow,omitempty"`
	SpO2Low  *float64 `json:"spo2Low,omitempty"`
	TempHigh *float64 `json:"tempHigh,omitempty"`
	RRHigh   *float64 `json:"rrHigh,omitempty"`
	RRLow    *float64 `json:"rrLow,omitempty"`
}

// Limit returns a pointer to v.
func Limit(v float64) *float64 { return &v }

// DefaultThresholds returns the adult limits applied when no scope overrides them.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HRHigh:   Limit(120),
		HRLow:    Limit(50),
		SBPHigh:  Limit(180),
		SBPLow:   Limit(85),
		SpO2Low:  Limit(90),
		TempHigh: Limit(38.5),
		RRHigh:   Limit(28),
		RRLow:    Limit(10),
	}
}

// Merge returns t with every limit set in over replacing its own.
func (t Thresholds) Merge(over Thresholds) Thresholds {
	out := t.clone()
	pick := func(dst **float64, src *float64) {
		if src != nil {
			*dst = Limit(*src)
		}
	}
	pick(&out.HRHigh, over.HRHigh)
	pick(&out.HRLow, over.HRLow)
	pick(&out.SBPHigh, over.SBPHigh)
	pick(&out.SBPLow, over.SBPLow)
	pick(&out.SpO2Low, over.SpO2Low)
	pick(&out.TempHigh, over.TempHigh)
	pick(&out.RRHigh, over.RRHigh)
	pick(&out.RRLow, over.RRLow)
	return out
}

// IsZero reports whether no limit is set.
func (t Thresholds) IsZero() bool {
	return t == Thresholds{}
}

func (t Thresholds) clone() Thresholds {
	cp := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		return Limit(*v)
	}
	return Thresholds{
		HRHigh:   cp(t.HRHigh),
		HRLow:    cp(t.HRLow),
		SBPHigh:  cp(t.SBPHigh),
		SBPLow:   cp(t.SBPLow),
		SpO2Low:  cp(t.SpO2Low),
		TempHigh: cp(t.TempHigh),
		RRHigh:   cp(t.RRHigh),
		RRLow:    cp(t.RRLow),
	}
}

// RuleSet is every configured scope. Limits resolve default, then ward, then patient.
type RuleSet struct {
	Default  Thresholds            `json:"default"`
	Wards    map[string]Thresholds `json:"wards"`
	Patients map[string]Thresholds `json:"patients"`
}

func (r RuleSet) clone() RuleSet {
	out := RuleSet{
		Default:  r.Default.clone(),
		Wards:    make(map[string]Thresholds, len(r.Wards)),
		Patients: make(map[string]Thresholds, len(r.Patients)),
	}
	for k, v := range r.Wards {
		out.Wards[k] = v.clone()
	}
	for k, v := range r.Patients {
		out.Patients[k] = v.clone()
	}
	return out
}

// Validate rejects negative limits.
func (t Thresholds) Validate() error {
	for name, v := range map[string]*float64{
		"hrHigh": t.HRHigh, "hrLow": t.HRLow,
		"sbpHigh": t.SBPHigh, "sbpLow": t.SBPLow,
		"spo2Low": t.SpO2Low, "tempHigh": t.TempHigh,
		"rrHigh": t.RRHigh, "rrLow": t.RRLow,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}
