// Package normalize turns raw, possibly messy orthography/reading strings
// into the set of canonical variants worth trying against the lexical graph.
// Pure functions, no I/O; the ranker decides which variant matters.
package normalize

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// separators that carry no phonetic information; stripping them yields an
// extra compact variant (e.g. "お 茶" -> "お茶", "ア・パート" -> "アパート").
const separators = "・･·•=＝/／\\～〜,、.。!！?？「」『』()（）［］[]"

func clean(raw string) string {
	return strings.TrimSpace(norm.NFKC.String(raw))
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || strings.ContainsRune(separators, r) {
			return -1
		}
		return r
	}, s)
}

// OrthographyVariants returns the deduplicated variant set for a proposed
// written form. Empty and whitespace-only input yields an empty set so the
// caller can short-circuit without querying the store.
//
// When the expected part-of-speech is the adjectival-noun class and the form
// ends in な, the suffix-stripped lemma is offered in addition to the raw
// form, never instead of it: the POS expectation itself may be wrong.
func OrthographyVariants(raw string, expectedPOS string) []string {
	base := clean(raw)
	if base == "" {
		return nil
	}

	set := map[string]struct{}{base: {}}

	if IsNaAdjectivePOS(expectedPOS) {
		if stripped := strings.TrimSuffix(base, "な"); stripped != base && stripped != "" {
			set[stripped] = struct{}{}
		}
	}

	if compact := stripSeparators(base); compact != "" {
		set[compact] = struct{}{}
	}

	return collect(set)
}

// ReadingVariants returns the variant set for a phonetic reading, rendered in
// both kana scripts since vocabulary records may store either.
func ReadingVariants(raw string) []string {
	base := clean(raw)
	if base == "" {
		return nil
	}

	set := map[string]struct{}{base: {}}
	for _, v := range []string{base, stripSeparators(base)} {
		if v == "" {
			continue
		}
		set[v] = struct{}{}
		set[ToHiragana(v)] = struct{}{}
		set[ToKatakana(v)] = struct{}{}
	}

	return collect(set)
}

func collect(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ToHiragana folds katakana runes into their hiragana counterparts, leaving
// everything else untouched.
func ToHiragana(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'ァ' && r <= 'ヶ' {
			return r - 0x60
		}
		return r
	}, s)
}

// ToKatakana folds hiragana runes into their katakana counterparts.
func ToKatakana(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'ぁ' && r <= 'ゖ' {
			return r + 0x60
		}
		return r
	}, s)
}

// IsKana reports whether s is non-empty and consists solely of kana runes
// (either script) and the prolonged sound mark.
func IsKana(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'ぁ' && r <= 'ゖ':
		case r >= 'ァ' && r <= 'ヶ':
		case r == 'ー' || r == 'ゝ' || r == 'ゞ' || r == 'ヽ' || r == 'ヾ':
		default:
			return false
		}
	}
	return true
}

// IsNaAdjectivePOS reports whether the tag names the adjectival-noun class in
// any of the tagsets that show up in generator output.
func IsNaAdjectivePOS(pos string) bool {
	switch strings.ToLower(strings.TrimSpace(pos)) {
	case "na-adjective", "na_adjective", "adjectival noun", "adjectival_noun", "adj-na", "adj_na", "形容動詞":
		return true
	default:
		return false
	}
}
