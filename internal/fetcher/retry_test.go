package fetcher

import (
	"context"
	"errors"
	"testing"

	"github.com/newsgrid/harvester/pkg/plugin"
)

type scriptedFetcher struct {
	errs  []error
	calls int
}

func (s *scriptedFetcher) Name() string { return "scripted" }

func (s *scriptedFetcher) Fetch(ctx context.Context, url string) (*plugin.PageData, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	return &plugin.PageData{URL: url, HTML: "<html></html>"}, nil
}

func (s *scriptedFetcher) Close() error { return nil }

func TestIsRecoverable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("BrowserContext.new_page timed out"), true},
		{errors.New("connection closed while reading from the driver"), true},
		{errors.New("write: pipe closed by peer"), true},
		{errors.New("http status 404 for https://example.com"), false},
		{errors.New("context deadline exceeded"), false},
	}
	for _, c := range cases {
		if got := IsRecoverable(c.err); got != c.want {
			t.Errorf("IsRecoverable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestFetchWithRetryRecovers(t *testing.T) {
	f := &scriptedFetcher{errs: []error{
		errors.New("pipe closed by peer"),
		errors.New("connection closed while reading from the driver"),
		nil,
	}}

	page, err := FetchWithRetry(context.Background(), f, "https://example.com/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page == nil || f.calls != 3 {
		t.Errorf("calls = %d, want 3", f.calls)
	}
}

func TestFetchWithRetryGivesUpAfterLimit(t *testing.T) {
	transient := errors.New("pipe closed by peer")
	f := &scriptedFetcher{errs: []error{transient, transient, transient, transient}}

	_, err := FetchWithRetry(context.Background(), f, "https://example.com/a")
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if f.calls != maxFetchAttempts {
		t.Errorf("calls = %d, want %d", f.calls, maxFetchAttempts)
	}
}

func TestFetchWithRetryNonRecoverableFailsFast(t *testing.T) {
	f := &scriptedFetcher{errs: []error{errors.New("http status 500 for x")}}

	_, err := FetchWithRetry(context.Background(), f, "https://example.com/a")
	if err == nil {
		t.Fatal("expected error")
	}
	if f.calls != 1 {
		t.Errorf("calls = %d, want fail-fast single attempt", f.calls)
	}
}

func TestFetchWithRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &scriptedFetcher{}
	_, err := FetchWithRetry(ctx, f, "https://example.com/a")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if f.calls != 0 {
		t.Errorf("calls = %d, want 0 after pre-cancelled context", f.calls)
	}
}
