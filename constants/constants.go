package constants

// User-facing messages returned by the API or stored as chat replies.
const (
	ChatReplyFallback     = "Sorry, I received an unexpected response."
	ChatReplyUnreachable  = "Sorry, I'm having trouble connecting right now. (Error: %v)"
	ChatReplyUnparseable  = "Sorry, I received a response I couldn't understand from my brain."
	ReportNetworkError    = "Network error communicating with AI Agent: %v"
	ReportUnexpectedError = "An unexpected error occurred: %v"

	MsgDescriptionStarted = "Description generation has started in the background."
	MsgStartupLiked       = "startup liked"

	ErrUnauthorized       = "authentication credentials were not provided"
	ErrAccessProhibited   = "You do not have permission to perform this action."
	ErrNotFound           = "We could not find what you're looking for."
	ErrReportNotCompleted = "Report is not completed yet."
	ErrPromptRequired     = "prompt is required"
	ErrPromptTooLong      = "prompt must be at most %d characters"
	ErrPromptDataRequired = "prompt_data is required to generate a description."
	ErrQueryRequired      = "initial_query_input is required"
)

// MaxPromptLength bounds a single chat prompt.
const MaxPromptLength = 4000

// ShortQueryLength is the cut-off of the report list view.
const ShortQueryLength = 75

// RecommendationLimit caps the recommendation list.
const RecommendationLimit = 10

// Task names registered on the job queue.
const (
	TaskGenerateReport      = "reports.generate"
	TaskGenerateDescription = "startups.generate_description"
)
