package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"caspview/internal/config"
	"caspview/internal/survey"
	"caspview/internal/votes"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*config.Config)) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.APIURL = srv.URL + "/exec"
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := NewClient(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClientRequiresURL(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := NewClient(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !errors.Is(err, config.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured for placeholder URL, got %v", err)
	}
}

func TestFetchResponses(t *testing.T) {
	var gotAction string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.URL.Query().Get("action")
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("Expected X-Request-Id header")
		}
		w.Write([]byte(`{"questions": [{"questionText": "a", "responses": [{"rowIndex": 3, "studentId": "x", "answer": "Yes"}]}]}`))
	}, nil)

	model, err := c.FetchResponses(context.Background())
	if err != nil {
		t.Fatalf("FetchResponses failed: %v", err)
	}
	if gotAction != "" {
		t.Errorf("Expected no action parameter by default, got %q", gotAction)
	}
	if len(model.Responses) != 1 || model.Responses[0].Index != 3 {
		t.Errorf("Unexpected model %+v", model)
	}
}

func TestFetchResponsesWithAction(t *testing.T) {
	var gotAction string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.URL.Query().Get("action")
		w.Write([]byte(`{"questions": []}`))
	}, func(cfg *config.Config) {
		cfg.ResponsesAction = "getResponses"
	})

	if _, err := c.FetchResponses(context.Background()); err != nil {
		t.Fatalf("FetchResponses failed: %v", err)
	}
	if gotAction != "getResponses" {
		t.Errorf("Expected action=getResponses, got %q", gotAction)
	}
}

func TestFetchResponsesErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}, nil)

		_, err := c.FetchResponses(context.Background())
		var te *TransportError
		if !errors.As(err, &te) || te.StatusCode != http.StatusInternalServerError {
			t.Errorf("Expected TransportError with status 500, got %v", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error": "sheet not found"}`))
		}, nil)

		_, err := c.FetchResponses(context.Background())
		if !errors.Is(err, survey.ErrMalformedPayload) {
			t.Errorf("Expected ErrMalformedPayload, got %v", err)
		}
	})

	t.Run("network", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		cfg := config.DefaultConfig()
		cfg.APIURL = srv.URL
		srv.Close()

		c, err := NewClient(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
		if err != nil {
			t.Fatal(err)
		}
		_, err = c.FetchResponses(context.Background())
		var te *TransportError
		if !errors.As(err, &te) || te.StatusCode != 0 {
			t.Errorf("Expected network TransportError, got %v", err)
		}
	})
}

func TestFetchVotes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"key encoded", `{"q0_s1": 2, "q3_s7": 1}`, 2},
		{"list", `{"votes": [{"questionIndex": 0, "studentRowIndex": 1}]}`, 1},
		{"unknown shape", `"maintenance"`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("action") != "getVotes" {
					t.Errorf("Expected action=getVotes, got %q", r.URL.RawQuery)
				}
				w.Write([]byte(tt.body))
			}, nil)

			counts, err := c.FetchVotes(context.Background())
			if err != nil {
				t.Fatalf("FetchVotes failed: %v", err)
			}
			if len(counts) != tt.want {
				t.Errorf("Expected %d pairs, got %v", tt.want, counts)
			}
		})
	}
}

func TestSubmitVotePost(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		rejected bool
	}{
		{"success", http.StatusOK, `{"success": true}`, false},
		{"explicit failure", http.StatusOK, `{"success": false}`, true},
		{"error message", http.StatusOK, `{"success": false, "error": "Voting closed"}`, true},
		{"no error field", http.StatusOK, `{}`, false},
		{"server error", http.StatusBadGateway, `{"success": true}`, true},
		{"html reply", http.StatusOK, `<html></html>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got voteRequest
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("Expected POST, got %s", r.Method)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("Expected JSON content type, got %q", ct)
				}
				json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, nil)

			err := c.SubmitVote(context.Background(), votes.Key{Question: 3, Row: 7})

			var rejected *VoteRejectedError
			if errors.As(err, &rejected) != tt.rejected {
				t.Fatalf("Expected rejected=%v, got %v", tt.rejected, err)
			}
			if got != (voteRequest{Action: "vote", QuestionIndex: 3, StudentRowIndex: 7}) {
				t.Errorf("Unexpected request body %+v", got)
			}
		})
	}
}

func TestSubmitVoteRejectionReason(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "Voting closed"}`))
	}, nil)

	err := c.SubmitVote(context.Background(), votes.Key{Question: 1, Row: 2})
	var rejected *VoteRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Expected VoteRejectedError, got %v", err)
	}
	if rejected.Reason != "Voting closed" || rejected.Key != (votes.Key{Question: 1, Row: 2}) {
		t.Errorf("Unexpected rejection %+v", rejected)
	}
}

func TestSubmitVoteGet(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		rejected bool
	}{
		{"empty object", `{}`, false},
		{"empty body", ``, false},
		{"error", `{"error": "Invalid row"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if r.Method != http.MethodGet {
					t.Errorf("Expected GET, got %s", r.Method)
				}
				if q.Get("action") != "recordVote" || q.Get("questionIndex") != "4" || q.Get("studentRowIndex") != "11" {
					t.Errorf("Unexpected query %q", r.URL.RawQuery)
				}
				w.Write([]byte(tt.body))
			}, func(cfg *config.Config) {
				cfg.VoteMethod = "get"
			})

			err := c.SubmitVote(context.Background(), votes.Key{Question: 4, Row: 11})
			var rejected *VoteRejectedError
			if errors.As(err, &rejected) != tt.rejected {
				t.Errorf("Expected rejected=%v, got %v", tt.rejected, err)
			}
		})
	}
}

func TestSubmitVoteTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := config.DefaultConfig()
	cfg.APIURL = srv.URL
	srv.Close()

	c, err := NewClient(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}

	err = c.SubmitVote(context.Background(), votes.Key{})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Errorf("Expected TransportError, got %v", err)
	}
}
