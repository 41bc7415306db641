package person

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cucumber/godog"
)

const basePath = "/api/person"

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Request(method, path string, body interface{}) error
	StatusCode() int
	Body() []byte
	Location() string
	DecodeResponse(v interface{}) error
	Remember(name string, id int64)
	Recall(name string) (int64, error)
}

type person struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RegisterSteps registers person registry step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &personSteps{tc: tc, listings: make(map[string][]person)}

	// Fixture steps
	ctx.Step(`^a person with id (\d+) named "([^"]*)" exists$`, steps.personExists)
	ctx.Step(`^no person with id (\d+) exists$`, steps.noPersonExists)

	// Action steps
	ctx.Step(`^I create a person named "([^"]*)"$`, steps.createGenerated)
	ctx.Step(`^I create a person with id (\d+) named "([^"]*)"$`, steps.createExplicit)
	ctx.Step(`^I fetch person (\d+)$`, steps.fetchByID)
	ctx.Step(`^I fetch "([^"]*)"$`, steps.fetchRemembered)
	ctx.Step(`^I rename person (\d+) to "([^"]*)"$`, steps.renameByID)
	ctx.Step(`^I rename "([^"]*)" to "([^"]*)"$`, steps.renameRemembered)
	ctx.Step(`^I delete person (\d+)$`, steps.deleteByID)
	ctx.Step(`^I delete "([^"]*)"$`, steps.deleteRemembered)
	ctx.Step(`^I list people with query "([^"]*)"$`, steps.list)

	// Assertion steps
	ctx.Step(`^the created id should be (\d+)$`, steps.createdIDShouldBe)
	ctx.Step(`^a new id should be returned for "([^"]*)"$`, steps.newIDReturned)
	ctx.Step(`^the updated id should be (\d+)$`, steps.updatedIDShouldBe)
	ctx.Step(`^the person should have id (\d+) and name "([^"]*)"$`, steps.personShouldBe)
	ctx.Step(`^the person should be named "([^"]*)"$`, steps.personShouldBeNamed)
	ctx.Step(`^the response should contain (\d+) people$`, steps.responseShouldContainN)
	ctx.Step(`^the response should be a list of people$`, steps.responseShouldBeList)
	ctx.Step(`^the listing "([^"]*)" should be the reverse of "([^"]*)"$`, steps.listingShouldBeReverse)
}

type personSteps struct {
	tc       TestContext
	listings map[string][]person
}

func personPath(id int64) string {
	return basePath + "/" + strconv.FormatInt(id, 10)
}

func (s *personSteps) expectStatus(status int) error {
	if got := s.tc.StatusCode(); got != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, got, string(s.tc.Body()))
	}
	return nil
}

// personExists makes the fixture present regardless of earlier runs against
// the same server.
func (s *personSteps) personExists(ctx context.Context, id int64, name string) error {
	if err := s.tc.Request(http.MethodPut, personPath(id), map[string]interface{}{"name": name}); err != nil {
		return err
	}
	if s.tc.StatusCode() == http.StatusOK {
		return nil
	}
	if err := s.tc.Request(http.MethodPost, basePath, map[string]interface{}{"id": id, "name": name}); err != nil {
		return err
	}
	return s.expectStatus(http.StatusCreated)
}

func (s *personSteps) noPersonExists(ctx context.Context, id int64) error {
	if err := s.tc.Request(http.MethodDelete, personPath(id), nil); err != nil {
		return err
	}
	switch s.tc.StatusCode() {
	case http.StatusOK, http.StatusConflict:
		return nil
	default:
		return fmt.Errorf("clearing person %d: unexpected status %d", id, s.tc.StatusCode())
	}
}

func (s *personSteps) createGenerated(ctx context.Context, name string) error {
	return s.create(name, map[string]interface{}{"name": name})
}

func (s *personSteps) createExplicit(ctx context.Context, id int64, name string) error {
	return s.create(name, map[string]interface{}{"id": id, "name": name})
}

func (s *personSteps) create(name string, body map[string]interface{}) error {
	if err := s.tc.Request(http.MethodPost, basePath, body); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusCreated {
		return nil
	}
	var id int64
	if err := s.tc.DecodeResponse(&id); err != nil {
		return err
	}
	s.tc.Remember(name, id)
	return nil
}

func (s *personSteps) fetchByID(ctx context.Context, id int64) error {
	return s.tc.Request(http.MethodGet, personPath(id), nil)
}

func (s *personSteps) fetchRemembered(ctx context.Context, name string) error {
	id, err := s.tc.Recall(name)
	if err != nil {
		return err
	}
	return s.fetchByID(ctx, id)
}

func (s *personSteps) renameByID(ctx context.Context, id int64, name string) error {
	return s.tc.Request(http.MethodPut, personPath(id), map[string]interface{}{"name": name})
}

func (s *personSteps) renameRemembered(ctx context.Context, current, name string) error {
	id, err := s.tc.Recall(current)
	if err != nil {
		return err
	}
	return s.renameByID(ctx, id, name)
}

func (s *personSteps) deleteByID(ctx context.Context, id int64) error {
	return s.tc.Request(http.MethodDelete, personPath(id), nil)
}

func (s *personSteps) deleteRemembered(ctx context.Context, name string) error {
	id, err := s.tc.Recall(name)
	if err != nil {
		return err
	}
	return s.deleteByID(ctx, id)
}

func (s *personSteps) list(ctx context.Context, query string) error {
	path := basePath
	if query != "" {
		path += "?" + query
	}
	if err := s.tc.Request(http.MethodGet, path, nil); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusOK {
		return nil
	}
	var people []person
	if err := s.tc.DecodeResponse(&people); err != nil {
		return err
	}
	s.listings[query] = people
	return nil
}

func (s *personSteps) createdIDShouldBe(ctx context.Context, id int64) error {
	if err := s.expectStatus(http.StatusCreated); err != nil {
		return err
	}
	var got int64
	if err := s.tc.DecodeResponse(&got); err != nil {
		return err
	}
	if got != id {
		return fmt.Errorf("expected id %d, got %d", id, got)
	}
	if s.tc.Location() != personPath(id) {
		return fmt.Errorf("expected Location %q, got %q", personPath(id), s.tc.Location())
	}
	return nil
}

func (s *personSteps) updatedIDShouldBe(ctx context.Context, id int64) error {
	if err := s.expectStatus(http.StatusOK); err != nil {
		return err
	}
	var got int64
	if err := s.tc.DecodeResponse(&got); err != nil {
		return err
	}
	if got != id {
		return fmt.Errorf("expected id %d, got %d", id, got)
	}
	return nil
}

func (s *personSteps) newIDReturned(ctx context.Context, name string) error {
	if err := s.expectStatus(http.StatusCreated); err != nil {
		return err
	}
	id, err := s.tc.Recall(name)
	if err != nil {
		return err
	}
	if id < 1 {
		return fmt.Errorf("expected a positive generated id, got %d", id)
	}
	return nil
}

func (s *personSteps) decodePerson() (person, error) {
	var p person
	if err := s.expectStatus(http.StatusOK); err != nil {
		return p, err
	}
	return p, s.tc.DecodeResponse(&p)
}

func (s *personSteps) personShouldBe(ctx context.Context, id int64, name string) error {
	p, err := s.decodePerson()
	if err != nil {
		return err
	}
	if p.ID != id || p.Name != name {
		return fmt.Errorf("expected {%d %q}, got {%d %q}", id, name, p.ID, p.Name)
	}
	return nil
}

func (s *personSteps) personShouldBeNamed(ctx context.Context, name string) error {
	p, err := s.decodePerson()
	if err != nil {
		return err
	}
	if p.Name != name {
		return fmt.Errorf("expected name %q, got %q", name, p.Name)
	}
	return nil
}

func (s *personSteps) responseShouldContainN(ctx context.Context, n int) error {
	var people []person
	if err := s.tc.DecodeResponse(&people); err != nil {
		return err
	}
	if len(people) != n {
		return fmt.Errorf("expected %d people, got %d", n, len(people))
	}
	return nil
}

func (s *personSteps) responseShouldBeList(ctx context.Context) error {
	var people []person
	return s.tc.DecodeResponse(&people)
}

func (s *personSteps) listingShouldBeReverse(ctx context.Context, query, otherQuery string) error {
	got, ok := s.listings[query]
	if !ok {
		return fmt.Errorf("no listing for %q", query)
	}
	other, ok := s.listings[otherQuery]
	if !ok {
		return fmt.Errorf("no listing for %q", otherQuery)
	}
	if len(got) != len(other) {
		return fmt.Errorf("listings differ in length: %d vs %d", len(got), len(other))
	}
	for i := range got {
		if got[i] != other[len(other)-1-i] {
			return fmt.Errorf("position %d: %v is not the mirror of %v", i, got[i], other[len(other)-1-i])
		}
	}
	return nil
}
