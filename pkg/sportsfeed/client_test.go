package sportsfeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGameScoreFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/summary" {
			t.Errorf("path = %q, want /summary", r.URL.Path)
		}
		if got := r.URL.Query().Get("event"); got != "401" {
			t.Errorf("event = %q, want 401", got)
		}
		w.Write([]byte(`{
			"id": "401",
			"status": "final",
			"competitors": [
				{"homeAway": "home", "score": 31, "team": {"name": "Ravens"}},
				{"homeAway": "away", "score": 17, "team": {"name": "Browns"}}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	gs, err := c.GameScore(context.Background(), "401")
	if err != nil {
		t.Fatalf("GameScore: %v", err)
	}
	if gs.GameID != "401" || gs.HomeScore != 31 || gs.AwayScore != 17 {
		t.Errorf("got %+v", gs)
	}
	if !gs.Final() {
		t.Error("Final() = false")
	}
}

func TestScoreboardFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scoreboard" {
			t.Errorf("path = %q, want /scoreboard", r.URL.Path)
		}
		w.Write([]byte(`{"events": [
			{"id": 1, "status": "final", "competitors": [
				{"homeAway": "home", "score": 20, "team": {"name": "A"}},
				{"homeAway": "away", "score": 10, "team": {"name": "B"}}
			]},
			{"id": 2, "status": "scheduled"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	scores, err := c.Scoreboard(context.Background())
	if err != nil {
		t.Fatalf("Scoreboard: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("len = %d, want 2", len(scores))
	}
	if scores[0].GameID != "1" || scores[1].GameID != "2" {
		t.Errorf("ids = %q, %q", scores[0].GameID, scores[1].GameID)
	}
}

func TestGameScoreAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.GameScore(context.Background(), "x"); err == nil {
		t.Fatal("want error for 502 response")
	}
}

func TestGameScoreTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}),
	)
	_, err := c.GameScore(context.Background(), "x")
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Fatalf("err = %v, want ErrUpstreamTimeout", err)
	}
}
