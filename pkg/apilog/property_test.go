package apilog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/getmockd/apidiag/pkg/kvstore"
	"github.com/getmockd/apidiag/pkg/redact"
)

func propertyParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())
	return parameters
}

func newPropertyStore(maxLogs int) (*Store, *kvstore.Memory) {
	kv := kvstore.NewMemory()
	s := New(kv, WithMaxLogs(maxLogs), WithIDGenerator(seqIDs()))
	s.SetEnabled(true)
	return s, kv
}

// The store never holds more than MaxLogs entries, and keeps the newest.
func TestProperty_Bound(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("count is min(begins, maxLogs)", prop.ForAll(
		func(maxLogs, begins int) bool {
			s, _ := newPropertyStore(maxLogs)
			defer s.Close(context.Background())

			for i := 0; i < begins; i++ {
				s.Begin(Request{Method: "GET", URL: fmt.Sprintf("https://api.x/%d", i)}, 0)
			}

			want := begins
			if want > maxLogs {
				want = maxLogs
			}
			logs := s.Logs()
			if len(logs) != want {
				t.Logf("maxLogs=%d begins=%d got=%d", maxLogs, begins, len(logs))
				return false
			}
			return want == 0 || logs[0].Request.URL == fmt.Sprintf("https://api.x/%d", begins-1)
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}

// Entries are ordered newest first and attempt numbers have no gaps.
func TestProperty_Ordering(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("newest first, contiguous attempts", prop.ForAll(
		func(attempts []int) bool {
			clock := newFakeClock()
			s := New(nil, WithClock(clock.Now), WithIDGenerator(seqIDs()))
			defer s.Close(context.Background())
			s.SetEnabled(true)

			for i, n := range attempts {
				id, _ := s.Begin(Request{Method: "GET", URL: fmt.Sprintf("https://api.x/%d", i)}, 0)
				for a := 1; a <= n; a++ {
					clock.Advance(time.Millisecond)
					s.RecordAttempt(id, a, ResponseOutcome(Response{Status: 500}))
				}
				clock.Advance(time.Millisecond)
			}

			logs := s.Logs()
			for i := 1; i < len(logs); i++ {
				if logs[i-1].Timestamp.Before(logs[i].Timestamp) {
					return false
				}
			}
			for i, e := range logs {
				if len(e.Attempts) != attempts[len(attempts)-1-i] {
					return false
				}
				for j, a := range e.Attempts {
					if a.AttemptNumber != j+1 {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(10, gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}

// No persisted entry contains a sensitive header or field value.
func TestProperty_Redaction(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	headerGen := gen.OneConstOf("authorization", "Authorization", "COOKIE", "Set-Cookie", "x-api-key", "X-Api-Key")
	fieldGen := gen.OneConstOf("password", "token", "secret", "apiKey", "api_key", "accessToken", "refreshToken")
	secretGen := gen.Identifier().Map(func(s string) string { return "sek-" + s })

	properties.Property("sensitive values never reach storage", prop.ForAll(
		func(header, field, secret string, depth int) bool {
			s, kv := newPropertyStore(DefaultMaxLogs)
			defer s.Close(context.Background())

			var body any = map[string]any{field: secret}
			for i := 0; i < depth; i++ {
				body = map[string]any{"level": []any{body, i}}
			}

			id, _ := s.Begin(Request{
				Method:  "POST",
				URL:     "https://api.x",
				Headers: map[string]string{header: secret},
				Body:    BodyOf(body),
			}, 0)
			s.RecordAttempt(id, 1, ResponseOutcome(Response{
				Status:  200,
				Headers: map[string]string{header: secret},
				Data:    BodyOf(body),
			}))
			s.Finish(id, ErrorOutcome(ErrorInfo{
				Message:  "denied",
				Response: &Response{Status: 403, Data: BodyOf(body)},
			}))

			if err := s.Flush(context.Background()); err != nil {
				return false
			}
			raw, _, err := kv.Get(context.Background(), KeyLogs)
			if err != nil || strings.Contains(raw, secret) {
				return false
			}
			inMemory, _ := json.Marshal(s.Logs())
			return !strings.Contains(string(inMemory), secret) &&
				strings.Contains(string(inMemory), redact.Marker)
		},
		headerGen,
		fieldGen,
		secretGen,
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}

// While disabled, capture calls change nothing.
func TestProperty_DisabledNoop(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("disabled capture leaves logs unchanged", prop.ForAll(
		func(existing, calls int) bool {
			s, _ := newPropertyStore(DefaultMaxLogs)
			defer s.Close(context.Background())

			var ids []string
			for i := 0; i < existing; i++ {
				id, _ := s.Begin(Request{Method: "GET", URL: "https://api.x"}, 0)
				ids = append(ids, id)
			}
			s.SetEnabled(false)
			before, _ := json.Marshal(s.Logs())

			for i := 0; i < calls; i++ {
				if _, ok := s.Begin(Request{Method: "GET", URL: "https://api.x/new"}, 0); ok {
					return false
				}
				for _, id := range ids {
					s.RecordAttempt(id, 1, ResponseOutcome(Response{Status: 200}))
					s.Finish(id, ResponseOutcome(Response{Status: 200}))
				}
			}

			after, _ := json.Marshal(s.Logs())
			return string(before) == string(after)
		},
		gen.IntRange(0, 5),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}

// Clearing twice equals clearing once.
func TestProperty_ClearIdempotent(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("clear is idempotent", prop.ForAll(
		func(n int, enabled bool) bool {
			s, kv := newPropertyStore(DefaultMaxLogs)
			defer s.Close(context.Background())
			for i := 0; i < n; i++ {
				s.Begin(Request{Method: "GET", URL: "https://api.x"}, 0)
			}
			s.SetEnabled(enabled)

			s.Clear()
			if err := s.Flush(context.Background()); err != nil {
				return false
			}
			once, _, _ := kv.Get(context.Background(), KeyLogs)

			s.Clear()
			if err := s.Flush(context.Background()); err != nil {
				return false
			}
			twice, _, _ := kv.Get(context.Background(), KeyLogs)

			return s.Count() == 0 && once == "[]" && once == twice && s.IsEnabled() == enabled
		},
		gen.IntRange(0, 10),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
