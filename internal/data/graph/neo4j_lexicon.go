package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kotobalab/kotoba-backend/internal/domain/lexicon"
	apperrors "github.com/kotobalab/kotoba-backend/internal/pkg/errors"
	"github.com/kotobalab/kotoba-backend/internal/platform/logger"
	"github.com/kotobalab/kotoba-backend/internal/platform/neo4jdb"
)

// candidateLimit bounds ranking cost; resolution never needs more rows than
// this to detect ambiguity.
const candidateLimit = 20

// LexiconStore issues vocabulary and relation queries against the lexical
// graph. Reads are side-effect-free; writes are keyed upserts.
type LexiconStore struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewLexiconStore(client *neo4jdb.Client, baseLog *logger.Logger) *LexiconStore {
	return &LexiconStore{
		client: client,
		log:    baseLog.With("store", "Lexicon"),
	}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", apperrors.ErrStoreUnavailable, op, err)
}

// FetchCandidates returns every Word node matching any orthography variant on
// a canonical-form field or any reading variant on a reading field. An empty
// pair of variant sets returns nil without querying: an unconstrained match
// would be unbounded.
func (s *LexiconStore) FetchCandidates(ctx context.Context, orthVariants, readingVariants, allowedPOS []string) ([]lexicon.WordRecord, error) {
	if len(orthVariants) == 0 && len(readingVariants) == 0 {
		return nil, nil
	}

	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (w:Word)
WHERE w.kanji IN $orth
   OR w.lemma IN $orth
   OR w.ud_lemma IN $orth
   OR w.kana IN $readings
   OR w.katakana IN $readings
WITH w
WHERE size($pos) = 0
   OR toLower(coalesce(w.upos, coalesce(w.xpos, w.pos))) IN $pos
RETURN w.kanji AS kanji, w.lemma AS lemma, w.ud_lemma AS ud_lemma,
       w.kana AS kana, w.katakana AS katakana,
       w.pos AS pos, w.upos AS upos, w.xpos AS xpos, w.source AS source
LIMIT $limit
`, map[string]any{
			"orth":     emptyIfNil(orthVariants),
			"readings": emptyIfNil(readingVariants),
			"pos":      emptyIfNil(allowedPOS),
			"limit":    candidateLimit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, storeErr("fetch candidates", err)
	}

	return recordsToWords(rows.([]*neo4j.Record)), nil
}

// GetWords loads full records for an explicit list of canonical forms,
// preserving the input order where matches exist.
func (s *LexiconStore) GetWords(ctx context.Context, kanji []string) ([]lexicon.WordRecord, error) {
	if len(kanji) == 0 {
		return nil, nil
	}

	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $kanji AS k
MATCH (w:Word {kanji: k})
RETURN w.kanji AS kanji, w.lemma AS lemma, w.ud_lemma AS ud_lemma,
       w.kana AS kana, w.katakana AS katakana,
       w.pos AS pos, w.upos AS upos, w.xpos AS xpos, w.source AS source
`, map[string]any{"kanji": kanji})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, storeErr("get words", err)
	}

	return recordsToWords(rows.([]*neo4j.Record)), nil
}

// ListWords enumerates vocabulary for the query-filtered source mode.
func (s *LexiconStore) ListWords(ctx context.Context, posFilter string, limit int) ([]lexicon.WordRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (w:Word)
WHERE $pos = '' OR toLower(coalesce(w.upos, coalesce(w.xpos, w.pos))) = $pos
RETURN w.kanji AS kanji, w.lemma AS lemma, w.ud_lemma AS ud_lemma,
       w.kana AS kana, w.katakana AS katakana,
       w.pos AS pos, w.upos AS upos, w.xpos AS xpos, w.source AS source
ORDER BY w.kanji
LIMIT $limit
`, map[string]any{"pos": posFilter, "limit": limit})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, storeErr("list words", err)
	}

	return recordsToWords(rows.([]*neo4j.Record)), nil
}

// UpsertRelations merges accepted edges keyed on (source, target, type), so
// re-running a job never duplicates an edge. Symmetric relations also merge
// the reverse direction. Returns created vs. updated counts from the result
// summary.
func (s *LexiconStore) UpsertRelations(ctx context.Context, edges []lexicon.RelationEdge) (int, int, error) {
	if len(edges) == 0 {
		return 0, 0, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	forward := make([]map[string]any, 0, len(edges))
	reverse := make([]map[string]any, 0)
	for _, e := range edges {
		rec := map[string]any{
			"source":                e.SourceKanji,
			"target":                e.TargetKanji,
			"type":                  string(e.Type),
			"symmetric":             e.Symmetric,
			"weight":                e.Weight,
			"confidence":            e.Confidence,
			"explanation":           e.Explanation,
			"nuance":                e.Nuance,
			"provider":              e.Provider,
			"model":                 e.Model,
			"request_id":            e.RequestID,
			"resolution_method":     e.ResolutionMethod,
			"resolution_confidence": e.ResolutionConfidence,
			"synced_at":             now,
		}
		forward = append(forward, rec)
		if e.Symmetric {
			rev := make(map[string]any, len(rec))
			for k, v := range rec {
				rev[k] = v
			}
			rev["source"] = e.TargetKanji
			rev["target"] = e.SourceKanji
			reverse = append(reverse, rev)
		}
	}

	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)

	var created, updated int
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, batch := range [][]map[string]any{forward, reverse} {
			if len(batch) == 0 {
				continue
			}
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MATCH (a:Word {kanji: r.source})
MATCH (b:Word {kanji: r.target})
MERGE (a)-[e:RELATED {type: r.type}]->(b)
SET e.symmetric = r.symmetric,
    e.weight = r.weight,
    e.confidence = r.confidence,
    e.explanation = r.explanation,
    e.nuance = r.nuance,
    e.provider = r.provider,
    e.model = r.model,
    e.request_id = r.request_id,
    e.resolution_method = r.resolution_method,
    e.resolution_confidence = r.resolution_confidence,
    e.synced_at = r.synced_at
`, map[string]any{"rels": batch})
			if err != nil {
				return nil, err
			}
			summary, err := res.Consume(ctx)
			if err != nil {
				return nil, err
			}
			c := summary.Counters().RelationshipsCreated()
			created += c
			updated += len(batch) - c
		}
		return nil, nil
	})
	if err != nil {
		return 0, 0, storeErr("upsert relations", err)
	}

	return created, updated, nil
}

// SeedWords merges vocabulary nodes for the dictionary-import job. Existing
// nodes keep their fields; only missing optional properties are filled in.
func (s *LexiconStore) SeedWords(ctx context.Context, words []lexicon.WordRecord) (int, error) {
	if len(words) == 0 {
		return 0, nil
	}

	rows := make([]map[string]any, 0, len(words))
	for _, w := range words {
		if w.Kanji == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"kanji":    w.Kanji,
			"lemma":    w.Lemma,
			"ud_lemma": w.UDLemma,
			"kana":     w.Kana,
			"katakana": w.Katakana,
			"pos":      w.POS,
			"upos":     w.UPOS,
			"xpos":     w.XPOS,
			"source":   w.Source,
		})
	}

	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)

	// Schema init is best-effort; restricted users may not hold the grant.
	if res, err := session.Run(ctx, `CREATE CONSTRAINT word_kanji_unique IF NOT EXISTS FOR (w:Word) REQUIRE w.kanji IS UNIQUE`, nil); err != nil {
		s.log.Warn("neo4j schema init failed (continuing)", "error", err)
	} else {
		_, _ = res.Consume(ctx)
	}

	var created int
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $rows AS r
MERGE (w:Word {kanji: r.kanji})
ON CREATE SET w.lemma = r.lemma, w.ud_lemma = r.ud_lemma,
              w.kana = r.kana, w.katakana = r.katakana,
              w.pos = r.pos, w.upos = r.upos, w.xpos = r.xpos,
              w.source = r.source
ON MATCH SET w.kana = coalesce(w.kana, r.kana),
             w.katakana = coalesce(w.katakana, r.katakana),
             w.lemma = coalesce(w.lemma, r.lemma)
`, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		created = summary.Counters().NodesCreated()
		return nil, nil
	})
	if err != nil {
		return 0, storeErr("seed words", err)
	}

	return created, nil
}

// DegreeStat is one row of the cluster-analysis degree report.
type DegreeStat struct {
	Kanji  string `json:"kanji"`
	Degree int    `json:"degree"`
}

// RelationDegreeStats returns the most-connected words, used by the
// cluster-analysis job.
func (s *LexiconStore) RelationDegreeStats(ctx context.Context, limit int) ([]DegreeStat, error) {
	if limit <= 0 {
		limit = 50
	}

	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (w:Word)-[e:RELATED]-()
RETURN w.kanji AS kanji, count(e) AS degree
ORDER BY degree DESC, kanji
LIMIT $limit
`, map[string]any{"limit": limit})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, storeErr("degree stats", err)
	}

	var out []DegreeStat
	for _, rec := range rows.([]*neo4j.Record) {
		out = append(out, DegreeStat{
			Kanji:  stringValue(rec, "kanji"),
			Degree: int(intValue(rec, "degree")),
		})
	}
	return out, nil
}

func recordsToWords(records []*neo4j.Record) []lexicon.WordRecord {
	out := make([]lexicon.WordRecord, 0, len(records))
	for _, rec := range records {
		w := lexicon.WordRecord{
			Kanji:    stringValue(rec, "kanji"),
			Lemma:    stringValue(rec, "lemma"),
			UDLemma:  stringValue(rec, "ud_lemma"),
			Kana:     stringValue(rec, "kana"),
			Katakana: stringValue(rec, "katakana"),
			POS:      stringValue(rec, "pos"),
			UPOS:     stringValue(rec, "upos"),
			XPOS:     stringValue(rec, "xpos"),
			Source:   stringValue(rec, "source"),
		}
		if w.Kanji == "" {
			continue
		}
		out = append(out, w)
	}
	return out
}

func stringValue(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func intValue(rec *neo4j.Record, key string) int64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	i, _ := v.(int64)
	return i
}

func emptyIfNil(vs []string) []string {
	if vs == nil {
		return []string{}
	}
	return vs
}
