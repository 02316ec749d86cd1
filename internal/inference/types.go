package inference

// Intent is the classification tag returned by the NLP endpoint.
type Intent string

const (
	IntentAddExpense Intent = "add_expense"
	IntentGetReport  Intent = "get_report"
	IntentSetLimit   Intent = "set_limit"
	IntentGreeting   Intent = "greeting"
	IntentUnknown    Intent = "unknown"
)

// ResultKind discriminates the normalized gateway result.
type ResultKind string

const (
	// ResultExpense carries an extracted monetary amount.
	ResultExpense ResultKind = "expense_extracted"
	// ResultNoExpense means an expense was likely intended but no amount
	// could be extracted.
	ResultNoExpense ResultKind = "no_expense_found"
	// ResultTranscript carries only the transcribed text of an audio message.
	ResultTranscript ResultKind = "transcript_only"
	// ResultError means the external call failed; callers treat this as
	// "could not understand", never as a pipeline failure.
	ResultError ResultKind = "error"
)

// Result is the normalized shape every gateway operation returns, regardless
// of which external capability produced it.
type Result struct {
	Kind        ResultKind
	Intent      Intent
	Amount      *float64
	Category    string
	Description string
	Transcript  string
	Message     string
	Err         error
}

// HasAmount reports whether the result carries a usable monetary amount.
func (r Result) HasAmount() bool {
	return r.Amount != nil && *r.Amount >= 0
}
