package stocksage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const appleOverviewJSON = `{"Symbol": "AAPL", "Name": "Apple Inc", "Sector": "TECHNOLOGY", "PERatio": "29.5"}`

func TestFetchFundamentals(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		io.WriteString(w, appleOverviewJSON)
	}))
	defer server.Close()

	core := newTestCore(t, Options{FundamentalsBaseURL: server.URL, FundamentalsAPIKey: "fund-key"})
	got, err := core.fundamentals.FetchFundamentals(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("FetchFundamentals: %v", err)
	}
	if got.Symbol != "AAPL" || got.Name != "Apple Inc" || got.Sector != "TECHNOLOGY" {
		t.Fatalf("got %+v", got)
	}
	for _, want := range []string{"function=OVERVIEW", "symbol=AAPL", "apikey=fund-key"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestFetchFundamentalsRetriesOnRateLimitSentinel(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			io.WriteString(w, `{"Note": "API call frequency is 25 requests per day"}`)
			return
		}
		io.WriteString(w, appleOverviewJSON)
	}))
	defer server.Close()

	core := newTestCore(t, Options{FundamentalsBaseURL: server.URL})
	var slept []time.Duration
	core.fundamentals.sleep = func(d time.Duration) { slept = append(slept, d) }

	got, err := core.fundamentals.FetchFundamentals(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("FetchFundamentals: %v", err)
	}
	if got.Symbol != "AAPL" {
		t.Fatalf("got %+v", got)
	}
	if calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != 60*time.Second {
		t.Fatalf("slept = %v", slept)
	}
}

func TestFetchFundamentalsGivesUpAfterSecondSentinel(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, `{"Information": "rate limit reached"}`)
	}))
	defer server.Close()

	core := newTestCore(t, Options{FundamentalsBaseURL: server.URL})
	core.fundamentals.sleep = func(time.Duration) {}

	_, err := core.fundamentals.FetchFundamentals(context.Background(), "AAPL")
	if !IsErrorCode(err, ErrCodeRateLimited) {
		t.Fatalf("expected RATE_LIMITED, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls)
	}
}

func TestFetchFundamentalsErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode ErrorCode
	}{
		{name: "unknown symbol returns empty object", status: 200, body: `{}`, wantCode: ErrCodeUpstream},
		{name: "upstream http error", status: 500, body: "boom", wantCode: ErrCodeUpstream},
		{name: "non-json body", status: 200, body: "<html>", wantCode: ErrCodeUpstream},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer server.Close()

			core := newTestCore(t, Options{FundamentalsBaseURL: server.URL})
			_, err := core.fundamentals.FetchFundamentals(context.Background(), "ZZZZ")
			if !IsErrorCode(err, tc.wantCode) {
				t.Fatalf("expected %s, got %v", tc.wantCode, err)
			}
		})
	}

	core := newTestCore(t, Options{})
	if _, err := core.fundamentals.FetchFundamentals(context.Background(), "  "); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("blank symbol: expected INVALID_INPUT, got %v", err)
	}
}

func TestRateLimitSentinel(t *testing.T) {
	t.Parallel()

	if got := rateLimitSentinel([]byte(`{"Note": "slow down"}`)); got != "slow down" {
		t.Fatalf("Note sentinel = %q", got)
	}
	if got := rateLimitSentinel([]byte(`{"Information": "limit hit"}`)); got != "limit hit" {
		t.Fatalf("Information sentinel = %q", got)
	}
	if got := rateLimitSentinel([]byte(appleOverviewJSON)); got != "" {
		t.Fatalf("data payload misread as sentinel: %q", got)
	}
	if got := rateLimitSentinel([]byte("not json")); got != "" {
		t.Fatalf("invalid json misread as sentinel: %q", got)
	}
}

func TestStockFundamentalsFieldTags(t *testing.T) {
	t.Parallel()

	raw := `{"Symbol": "AAPL", "52WeekHigh": "260.1", "52WeekLow": "164.1", "50DayMovingAverage": "225.3", "200DayMovingAverage": "210.7"}`
	var got StockFundamentals
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.WeekHigh52 != "260.1" || got.WeekLow52 != "164.1" {
		t.Fatalf("52-week fields = %q %q", got.WeekHigh52, got.WeekLow52)
	}
	if got.MovingAverage50Day != "225.3" || got.MovingAverage200Day != "210.7" {
		t.Fatalf("moving averages = %q %q", got.MovingAverage50Day, got.MovingAverage200Day)
	}
}
