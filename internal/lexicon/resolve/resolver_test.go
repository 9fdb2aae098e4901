package resolve

import (
	"context"
	"fmt"
	"testing"

	"github.com/kotobalab/kotoba-backend/internal/domain/lexicon"
	apperrors "github.com/kotobalab/kotoba-backend/internal/pkg/errors"
	"github.com/kotobalab/kotoba-backend/internal/platform/logger"
)

type fakeStore struct {
	records   []lexicon.WordRecord
	err       error
	calls     int
	lastOrth  []string
	lastKana  []string
	lastAllow []string
}

func (f *fakeStore) FetchCandidates(_ context.Context, orth, readings, allowed []string) ([]lexicon.WordRecord, error) {
	f.calls++
	f.lastOrth = orth
	f.lastKana = readings
	f.lastAllow = allowed
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestResolveTargetEmptyInputShortCircuits(t *testing.T) {
	store := &fakeStore{}
	r := NewResolver(store, testLogger(t))

	out, err := r.ResolveTarget(context.Background(), "   ", "", "noun")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != lexicon.OutcomeNotFound || out.Reason != lexicon.NotFoundEmptyInput {
		t.Fatalf("expected empty_input not_found, got %+v", out)
	}
	if store.calls != 0 {
		t.Fatalf("store must not be queried for empty input")
	}
}

func TestResolveTargetHappyPath(t *testing.T) {
	store := &fakeStore{records: []lexicon.WordRecord{
		{Kanji: "綺麗", Kana: "きれい", UPOS: "adj"},
	}}
	r := NewResolver(store, testLogger(t))

	out, err := r.ResolveTarget(context.Background(), "綺麗な", "きれい", "na-adjective")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != lexicon.OutcomeResolved || out.TargetKanji != "綺麗" {
		t.Fatalf("expected 綺麗 resolved, got %+v", out)
	}
	// The na-adjective stripped variant must have reached the store.
	found := false
	for _, v := range store.lastOrth {
		if v == "綺麗" {
			found = true
		}
	}
	if !found {
		t.Fatalf("stripped variant missing from store query: %v", store.lastOrth)
	}
}

func TestResolveTargetReadingFallbackFromKanaOrthography(t *testing.T) {
	// The generator put a kana string in the orthography field and omitted
	// the reading; resolution must still try it as a reading.
	store := &fakeStore{records: []lexicon.WordRecord{
		{Kanji: "綺麗", Kana: "きれい", UPOS: "adj"},
	}}
	r := NewResolver(store, testLogger(t))

	out, err := r.ResolveTarget(context.Background(), "きれい", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.lastKana) == 0 {
		t.Fatalf("expected derived reading variants, got none")
	}
	if out.Kind != lexicon.OutcomeResolved {
		t.Fatalf("expected resolved via reading fallback, got %+v", out)
	}
}

func TestResolveTargetNoReadingFallbackForKanji(t *testing.T) {
	store := &fakeStore{}
	r := NewResolver(store, testLogger(t))

	if _, err := r.ResolveTarget(context.Background(), "綺麗", "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.lastKana) != 0 {
		t.Fatalf("kanji orthography must not leak into reading variants: %v", store.lastKana)
	}
}

func TestResolveTargetStoreErrorPropagates(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("%w: connection refused", apperrors.ErrStoreUnavailable)}
	r := NewResolver(store, testLogger(t))

	_, err := r.ResolveTarget(context.Background(), "綺麗", "", "")
	if err == nil {
		t.Fatalf("store outage must surface as an error, not not_found")
	}
}

func TestAllowedPOS(t *testing.T) {
	if got := AllowedPOS(""); got != nil {
		t.Fatalf("empty expected POS must not restrict, got %v", got)
	}
	got := AllowedPOS("na-adjective")
	found := false
	for _, v := range got {
		if v == "adj" {
			found = true
		}
	}
	if !found {
		t.Fatalf("na-adjective must include the UPOS adj tag: %v", got)
	}
	if got := AllowedPOS("proper-noun"); len(got) != 1 || got[0] != "proper-noun" {
		t.Fatalf("unknown tag restricts to itself, got %v", got)
	}
}
