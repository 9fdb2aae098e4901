package resolve

import "strings"

// posAliases maps the part-of-speech labels the generator emits onto the
// normalized tags stored on vocabulary nodes (UPOS-style lowercase plus the
// Japanese tagset names that survive older imports).
var posAliases = map[string][]string{
	"noun":         {"noun", "名詞"},
	"verb":         {"verb", "動詞"},
	"adjective":    {"adj", "adjective", "i-adjective", "形容詞"},
	"i-adjective":  {"adj", "adjective", "i-adjective", "形容詞"},
	"na-adjective": {"adj", "adjectival_noun", "na-adjective", "形容動詞"},
	"adverb":       {"adv", "adverb", "副詞"},
	"particle":     {"adp", "part", "particle", "助詞"},
	"expression":   {"intj", "expression", "感動詞"},
}

// AllowedPOS expands an expected part-of-speech label into the set of
// normalized store tags it should match. Empty input means no restriction and
// returns nil; an unknown label restricts to itself.
func AllowedPOS(expected string) []string {
	expected = strings.ToLower(strings.TrimSpace(expected))
	if expected == "" {
		return nil
	}
	if aliases, ok := posAliases[expected]; ok {
		return aliases
	}
	return []string{expected}
}
