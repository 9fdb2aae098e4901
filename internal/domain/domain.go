// Package domain re-exports the entity types under one import path, matching
// how call sites refer to them as types.X.
package domain

import (
	"github.com/kotobalab/kotoba-backend/internal/domain/jobs"
	"github.com/kotobalab/kotoba-backend/internal/domain/lexicon"
)

type JobRun = jobs.JobRun

type WordRecord = lexicon.WordRecord
type RelationType = lexicon.RelationType
type RelationCandidate = lexicon.RelationCandidate
type RelationEdge = lexicon.RelationEdge
type Outcome = lexicon.Outcome
type AmbiguousSample = lexicon.AmbiguousSample
