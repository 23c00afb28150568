package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the resolved identity of a research subject.
type Identity struct {
	Name           string   `json:"name"`
	Organizations  []string `json:"organizations"`
	DomainKeywords []string `json:"domain_keywords"`
}

// ResearchQuery is one search angle generated for a subject.
type ResearchQuery struct {
	Query    string `json:"query"`
	Category string `json:"category"`
}

// ResearchResult is the output of the research stage.
type ResearchResult struct {
	SubjectName string          `json:"subject_name"`
	Identity    Identity        `json:"identity"`
	Queries     []ResearchQuery `json:"queries"`
	Sources     []Source        `json:"sources"`
	RawMarkdown string          `json:"raw_markdown"`
}

// DossierResult is the output of the analysis stage.
type DossierResult struct {
	SubjectName     string `json:"subject_name"`
	SourcesAnalyzed int    `json:"sources_analyzed"`
	Synthesis       string `json:"synthesis"`
	CrossCutting    string `json:"cross_cutting"`
	RawMarkdown     string `json:"raw_markdown"`
}

// ProfileResult is the output of the writing stage.
type ProfileResult struct {
	SubjectName      string `json:"subject_name"`
	Profile          string `json:"profile"`
	ValidationPasses int    `json:"validation_passes"`
	// Validated is false when the draft was accepted after exhausting the
	// validation retry budget without a clean pass.
	Validated bool `json:"validated"`
}

// PipelineResult is the final payload of a completed pipeline run.
type PipelineResult struct {
	Research  ResearchResult `json:"research"`
	Dossier   DossierResult  `json:"dossier"`
	Profile   ProfileResult  `json:"profile"`
	Validated bool           `json:"validated"`
}

// ArchivedProfile is a finished profile persisted to Postgres.
type ArchivedProfile struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	SubjectName string    `db:"subject_name" json:"subject_name"`
	Profile     string    `db:"profile"      json:"profile"`
	Validated   bool      `db:"validated"    json:"validated"`
	SourceCount int       `db:"source_count" json:"source_count"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}
