package application

// Stage names a step of the intake pipeline.
type Stage string

const (
	StageParse       Stage = "parse"
	StageBotCheck    Stage = "bot_check"
	StageLoadConfig  Stage = "load_config"
	StageValidate    Stage = "validate"
	StagePersist     Stage = "persist"
	StageNotifyUser  Stage = "notify_user"
	StageNotifyAdmin Stage = "notify_admin"
)

// Rejection reports whether failures at this stage are policy outcomes
// (the client's fault) rather than dependency or input failures.
func (s Stage) Rejection() bool {
	return s == StageBotCheck || s == StageValidate
}

// StageError is the failure of one pipeline stage. Message is safe to return
// to clients; Cause carries the underlying error, if any.
type StageError struct {
	Stage   Stage
	Message string
	Cause   error
}

func (e *StageError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

func stageError(stage Stage, message string, cause error) *StageError {
	return &StageError{Stage: stage, Message: message, Cause: cause}
}
