package lexicon

import "strings"

// WordRecord is a vocabulary entry as read from the lexical graph. Rows are
// read-only to this subsystem; optional fields are empty strings.
//
// Field priority for identity and matching is fixed:
//
//	Kanji (canonical orthography, unique key)
//	Lemma (alternate orthographic / dictionary form)
//	UDLemma (canonical form from the independent UD morphological source)
//	Kana / Katakana (readings, two scripts)
type WordRecord struct {
	Kanji    string `json:"kanji"`
	Lemma    string `json:"lemma,omitempty"`
	UDLemma  string `json:"ud_lemma,omitempty"`
	Kana     string `json:"kana,omitempty"`
	Katakana string `json:"katakana,omitempty"`

	// POS is the primary tag from the source dictionary; UPOS and XPOS are
	// normalized tags from the UD and source-specific tagsets.
	POS  string `json:"pos,omitempty"`
	UPOS string `json:"upos,omitempty"`
	XPOS string `json:"xpos,omitempty"`

	Source string `json:"source,omitempty"`
}

// NormalizedPOS returns the best-known normalized part-of-speech tag:
// UPOS when present, else XPOS, else the raw POS, lowercased.
func (w WordRecord) NormalizedPOS() string {
	for _, p := range []string{w.UPOS, w.XPOS, w.POS} {
		if p = strings.TrimSpace(p); p != "" {
			return strings.ToLower(p)
		}
	}
	return ""
}
