package domain

import "fmt"

type Stage string

const (
	StageStart              Stage = "START"
	StagePreprocessed       Stage = "PREPROCESSED"
	StageRejected           Stage = "REJECTED"
	StageForked             Stage = "FORKED"
	StageStructureEvaluated Stage = "STRUCTURE_EVALUATED"
	StageGrammarEvaluated   Stage = "GRAMMAR_EVALUATED"
	StageSynthesized        Stage = "SYNTHESIZED"
	StageDone               Stage = "DONE"
)

func (s Stage) Terminal() bool {
	return s == StageRejected || s == StageDone
}

type Transition struct {
	From  Stage
	To    Stage
	Guard func(*WorkflowState) bool
}

// Transitions is the complete workflow graph. StructureEvaluated and GrammarEvaluated are
// branch completion events recorded while Forked, not stages of their own.
var Transitions = []Transition{
	{From: StageStart, To: StagePreprocessed},
	{From: StagePreprocessed, To: StageRejected, Guard: func(s *WorkflowState) bool { return !s.IsValidLanguage }},
	{From: StagePreprocessed, To: StageForked, Guard: func(s *WorkflowState) bool { return s.IsValidLanguage }},
	{From: StageForked, To: StageSynthesized, Guard: func(s *WorkflowState) bool { return s.StructureEvaluated() && s.GrammarEvaluated() }},
	{From: StageSynthesized, To: StageDone},
}

// WorkflowState is the working memory of exactly one evaluation run.
type WorkflowState struct {
	Request         EvaluationRequest
	Stage           Stage
	History         []Stage
	WordCount       int
	IsValidLanguage bool
	Judgements      map[RubricItem]RubricJudgement
	CoreIssues      map[RubricItem]bool
	Results         []EvaluationResult
	ErrorType       ErrorType
	ErrorMessage    string
}

func NewWorkflowState(req EvaluationRequest) *WorkflowState {
	return &WorkflowState{
		Request:    req,
		Stage:      StageStart,
		History:    []Stage{StageStart},
		Judgements: make(map[RubricItem]RubricJudgement, len(RubricOrder)),
		CoreIssues: make(map[RubricItem]bool, len(StructureItems)),
	}
}

func (s *WorkflowState) advance(to Stage) error {
	for _, t := range Transitions {
		if t.From != s.Stage || t.To != to {
			continue
		}
		if t.Guard != nil && !t.Guard(s) {
			return fmt.Errorf("%w: guard rejected %s -> %s", ErrInvalidTransition, s.Stage, to)
		}
		s.Stage = to
		s.History = append(s.History, to)
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, to)
}

func (s *WorkflowState) hasEvent(stage Stage) bool {
	for _, h := range s.History {
		if h == stage {
			return true
		}
	}
	return false
}

func (s *WorkflowState) StructureEvaluated() bool {
	return s.hasEvent(StageStructureEvaluated)
}

func (s *WorkflowState) GrammarEvaluated() bool {
	return s.hasEvent(StageGrammarEvaluated)
}

// ApplyPreprocess moves Start to Preprocessed and then routes to Rejected or Forked.
func (s *WorkflowState) ApplyPreprocess(res PreprocessResult) error {
	if err := s.advance(StagePreprocessed); err != nil {
		return err
	}
	s.WordCount = res.WordCount
	s.IsValidLanguage = res.IsValid
	if !res.IsValid {
		s.ErrorType = res.ErrorType
		s.ErrorMessage = res.ErrorMessage
		return s.advance(StageRejected)
	}
	return s.advance(StageForked)
}

func (s *WorkflowState) recordBranch(event Stage) error {
	if s.Stage != StageForked {
		return fmt.Errorf("%w: %s recorded outside %s (at %s)", ErrInvalidTransition, event, StageForked, s.Stage)
	}
	if s.hasEvent(event) {
		return fmt.Errorf("%w: %s already recorded", ErrInvalidTransition, event)
	}
	s.History = append(s.History, event)
	return nil
}

// RecordStructure stores the introduction, body and conclusion judgements and runs the
// core-issue analysis over each of them.
func (s *WorkflowState) RecordStructure(judgements map[RubricItem]RubricJudgement) error {
	for _, item := range StructureItems {
		if _, ok := judgements[item]; !ok {
			return fmt.Errorf("structure branch missing %s judgement", item)
		}
	}
	if err := s.recordBranch(StageStructureEvaluated); err != nil {
		return err
	}
	for _, item := range StructureItems {
		j := judgements[item]
		s.Judgements[item] = j
		s.CoreIssues[item] = HasCoreIssue(s.Request.LevelGroup, j.Corrections)
	}
	return nil
}

func (s *WorkflowState) RecordGrammar(judgement RubricJudgement) error {
	if err := s.recordBranch(StageGrammarEvaluated); err != nil {
		return err
	}
	s.Judgements[RubricGrammar] = judgement
	return nil
}

// Synthesize adjusts all four judgements in fixed order. Grammar never carries a core issue.
func (s *WorkflowState) Synthesize() error {
	if err := s.advance(StageSynthesized); err != nil {
		return err
	}
	results := make([]EvaluationResult, 0, len(RubricOrder))
	for _, item := range RubricOrder {
		hasCoreIssue := item != RubricGrammar && s.CoreIssues[item]
		results = append(results, Adjust(item, s.Judgements[item], hasCoreIssue, s.WordCount, s.Request.LevelGroup))
	}
	s.Results = results
	return nil
}

func (s *WorkflowState) Complete() error {
	return s.advance(StageDone)
}

func (s *WorkflowState) Outcome(evaluationID string) Outcome {
	var coreIssues map[RubricItem]bool
	if len(s.CoreIssues) > 0 {
		coreIssues = make(map[RubricItem]bool, len(s.CoreIssues))
		for k, v := range s.CoreIssues {
			coreIssues[k] = v
		}
	}
	return Outcome{
		EvaluationID: evaluationID,
		Stage:        s.Stage,
		WordCount:    s.WordCount,
		Results:      s.Results,
		ErrorType:    s.ErrorType,
		ErrorMessage: s.ErrorMessage,
		CoreIssues:   coreIssues,
		History:      append([]Stage(nil), s.History...),
	}
}
