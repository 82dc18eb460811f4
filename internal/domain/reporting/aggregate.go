// Package reporting computes practice-level summaries from one consistent
// read of the patient collection.
package reporting

import (
	"sort"

	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
)

type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type BucketCount struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

type GroupCount struct {
	Group string `json:"group"`
	Count int    `json:"count"`
}

type ConditionCount struct {
	Condition string `json:"condition"`
	Count     int    `json:"count"`
}

type Totals struct {
	Patients     int `json:"patients"`
	Appointments int `json:"appointments"`
	Medications  int `json:"medications"`
	Visits       int `json:"visits"`
}

type Overview struct {
	Totals               Totals           `json:"totals"`
	RegistrationsByMonth []MonthCount     `json:"registrations_by_month"`
	AgeDistribution      []BucketCount    `json:"age_distribution"`
	GenderDistribution   []GroupCount     `json:"gender_distribution"`
	TopConditions        []ConditionCount `json:"top_conditions"`
}

var ageBucketOrder = []string{"<18", "18-29", "30-49", "50-64", "65+"}

// ageBucket assigns an age to its half-open interval.
func ageBucket(age int) string {
	switch {
	case age < 18:
		return "<18"
	case age < 30:
		return "18-29"
	case age < 50:
		return "30-49"
	case age < 65:
		return "50-64"
	default:
		return "65+"
	}
}

const topConditionLimit = 10

// Aggregate is pure: it reads the supplied snapshot, never refetches, and
// never fails. Empty input yields empty bucket sets.
func Aggregate(patients []*patient.Patient, totals Totals) *Overview {
	totals.Patients = len(patients)
	return &Overview{
		Totals:               totals,
		RegistrationsByMonth: registrationsByMonth(patients),
		AgeDistribution:      ageDistribution(patients),
		GenderDistribution:   genderDistribution(patients),
		TopConditions:        topConditions(patients),
	}
}

// registrationsByMonth buckets by month of created_at. Callers supply
// patients in created_at order, so bucket order is chronological.
func registrationsByMonth(patients []*patient.Patient) []MonthCount {
	counts := make(map[string]int)
	order := []string{}
	for _, p := range patients {
		label := p.CreatedAt.Format("Jan 2006")
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		counts[label]++
	}
	out := make([]MonthCount, 0, len(order))
	for _, label := range order {
		out = append(out, MonthCount{Month: label, Count: counts[label]})
	}
	return out
}

// ageDistribution omits empty buckets rather than zero-filling them.
func ageDistribution(patients []*patient.Patient) []BucketCount {
	counts := make(map[string]int)
	for _, p := range patients {
		counts[ageBucket(p.Age)]++
	}
	out := make([]BucketCount, 0, len(counts))
	for _, bucket := range ageBucketOrder {
		if n := counts[bucket]; n > 0 {
			out = append(out, BucketCount{Bucket: bucket, Count: n})
		}
	}
	return out
}

// genderDistribution groups by the stored value verbatim, no normalization.
func genderDistribution(patients []*patient.Patient) []GroupCount {
	counts := make(map[string]int)
	order := []string{}
	for _, p := range patients {
		if _, seen := counts[p.Gender]; !seen {
			order = append(order, p.Gender)
		}
		counts[p.Gender]++
	}
	out := make([]GroupCount, 0, len(order))
	for _, g := range order {
		out = append(out, GroupCount{Group: g, Count: counts[g]})
	}
	return out
}

// topConditions ranks diagnoses by patient count, ties kept in
// first-encountered order, truncated to the ten most common.
func topConditions(patients []*patient.Patient) []ConditionCount {
	counts := make(map[string]int)
	order := []string{}
	for _, p := range patients {
		if p.ConditionDiagnosis == nil || *p.ConditionDiagnosis == "" {
			continue
		}
		cond := *p.ConditionDiagnosis
		if _, seen := counts[cond]; !seen {
			order = append(order, cond)
		}
		counts[cond]++
	}
	out := make([]ConditionCount, 0, len(order))
	for _, cond := range order {
		out = append(out, ConditionCount{Condition: cond, Count: counts[cond]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > topConditionLimit {
		out = out[:topConditionLimit]
	}
	return out
}
