package models

// Criterion is one of the fixed scoring dimensions.
type Criterion struct {
	ID   int    `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Criteria are the six scoring dimensions every event is judged against.
var Criteria = []Criterion{
	{ID: 1, Slug: "it_security", Name: "IT Security"},
	{ID: 2, Slug: "performance_degradation", Name: "Performance Degradation"},
	{ID: 3, Slug: "failure_prediction", Name: "Failure Prediction"},
	{ID: 4, Slug: "anomaly", Name: "Anomaly / Unusual Patterns"},
	{ID: 5, Slug: "compliance_audit", Name: "Compliance / Audit"},
	{ID: 6, Slug: "operational_risk", Name: "Operational Risk"},
}

// CriterionIDs returns the ids of Criteria in order.
func CriterionIDs() []int {
	ids := make([]int, len(Criteria))
	for i, c := range Criteria {
		ids[i] = c.ID
	}
	return ids
}
