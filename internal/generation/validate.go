package generation

// DecisionKind is the outcome of judging one generation attempt.
type DecisionKind string

const (
	// DecisionAccept: the candidate meets the threshold (or validation was
	// skipped); stop and persist it.
	DecisionAccept DecisionKind = "accept"
	// DecisionRetry: below threshold with attempts remaining; regenerate
	// with the returned hints appended to the prompt.
	DecisionRetry DecisionKind = "retry"
	// DecisionBestEffort: below threshold on the final attempt; persist the
	// candidate anyway, flagged so callers can surface it.
	DecisionBestEffort DecisionKind = "best_effort"
)

// Decision is the controller's verdict for one attempt.
type Decision struct {
	Kind  DecisionKind
	Score float64
	Hints []string
}

// Decide maps a validator score onto the retry protocol. score is nil when
// validation was skipped (no profile to validate against), which accepts the
// attempt unconditionally: a job cannot be validated against evidence it
// does not have. A below-threshold result on the last attempt is never
// discarded, only flagged.
func Decide(score *ScoreResult, attempt, maxAttempts int, threshold float64) Decision {
	if score == nil {
		return Decision{Kind: DecisionAccept}
	}
	if score.OverallScore >= threshold {
		return Decision{Kind: DecisionAccept, Score: score.OverallScore}
	}
	if attempt < maxAttempts {
		return Decision{
			Kind:  DecisionRetry,
			Score: score.OverallScore,
			Hints: score.RegenerationHints,
		}
	}
	return Decision{
		Kind:  DecisionBestEffort,
		Score: score.OverallScore,
		Hints: score.RegenerationHints,
	}
}
