package medullar

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testUser() *User {
	return &User{UUID: "u-1", Company: &Company{UUID: "c-1"}}
}

func TestListSpaces(t *testing.T) {
	ft := newFakeTransport().on(http.MethodGet, "/ai/v1/spaces/",
		`{"count":2,"results":[{"uuid":"s-1","name":"Research"},{"uuid":"s-2","display_name":"Sales"}]}`)
	c := newTestClient(ft)

	spaces, err := c.ListSpaces(context.Background(), testUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spaces) != 2 {
		t.Fatalf("expected 2 spaces, got %d", len(spaces))
	}
	if spaces[1].Label() != "Sales" {
		t.Errorf("expected display name label, got %q", spaces[1].Label())
	}

	q := ft.calls[0].Query
	if q.Get("user") != "u-1" || q.Get("limit") != "1000" || q.Get("offset") != "0" {
		t.Errorf("unexpected query %v", q)
	}
	if ft.calls[0].Body != nil {
		t.Errorf("expected no body on list, got %s", ft.calls[0].Body)
	}
}

func TestListSpaces_MissingResults(t *testing.T) {
	bodies := []string{`{}`, `{"results":null}`, `{"results":{}}`, `[]`, ``}
	for _, body := range bodies {
		ft := newFakeTransport().on(http.MethodGet, "/ai/v1/spaces/", body)
		spaces, err := newTestClient(ft).ListSpaces(context.Background(), testUser())
		if err != nil {
			t.Errorf("body %q: unexpected error: %v", body, err)
			continue
		}
		if spaces == nil || len(spaces) != 0 {
			t.Errorf("body %q: expected empty non-nil slice, got %#v", body, spaces)
		}
	}
}

func TestListSpaces_RequiresUser(t *testing.T) {
	ft := newFakeTransport()
	_, err := newTestClient(ft).ListSpaces(context.Background(), &User{})
	if !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if len(ft.calls) != 0 {
		t.Errorf("expected no calls, got %d", len(ft.calls))
	}
}

func TestCreateSpace(t *testing.T) {
	ft := newFakeTransport().on(http.MethodPost, "/ai/v1/spaces/", `{"uuid":"s-9","name":"New"}`)
	c := newTestClient(ft)

	resp, err := c.CreateSpace(context.Background(), testUser(), "New")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp) != `{"uuid":"s-9","name":"New"}` {
		t.Errorf("expected upstream body, got %s", resp)
	}
	want := `{"company":{"uuid":"c-1"},"name":"New"}`
	if diff := cmp.Diff(want, string(ft.calls[0].Body)); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateSpace_Validation(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(ft)

	if _, err := c.CreateSpace(context.Background(), testUser(), ""); !IsValidation(err) {
		t.Errorf("expected validation error for empty name, got %v", err)
	}
	if _, err := c.CreateSpace(context.Background(), &User{UUID: "u-1"}, "x"); !IsSemantic(err) {
		t.Errorf("expected semantic error for user without company, got %v", err)
	}
	if len(ft.calls) != 0 {
		t.Errorf("expected no calls, got %d", len(ft.calls))
	}
}

func TestRenameSpace(t *testing.T) {
	ft := newFakeTransport().on(http.MethodPatch, "/ai/v1/spaces/s-1/", `{"uuid":"s-1","name":"Renamed"}`)
	c := newTestClient(ft)

	if _, err := c.RenameSpace(context.Background(), "s-1", "Renamed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(ft.calls[0].Body) != `{"name":"Renamed"}` {
		t.Errorf("unexpected body %s", ft.calls[0].Body)
	}
}

func TestDeleteSpace(t *testing.T) {
	ft := newFakeTransport().on(http.MethodDelete, "/ai/v1/spaces/s-1/", "")
	c := newTestClient(ft)

	resp, err := c.DeleteSpace(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp) != 0 {
		t.Errorf("expected empty body, got %s", resp)
	}
	if _, err := c.DeleteSpace(context.Background(), ""); !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
