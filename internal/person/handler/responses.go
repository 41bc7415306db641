package handler

import "vetclinic/internal/person/models"

// PersonResponse is the wire shape of a person.
type PersonResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status string `json:"status"`
	People *int   `json:"people,omitempty"`
}

func toPersonResponse(p *models.Person) PersonResponse {
	return PersonResponse{ID: p.ID, Name: p.Name}
}

// toPersonResponses always returns a non-nil slice so empty lists encode as [].
func toPersonResponses(people []models.Person) []PersonResponse {
	out := make([]PersonResponse, 0, len(people))
	for i := range people {
		out = append(out, toPersonResponse(&people[i]))
	}
	return out
}
