package events

const (
	KindActivationRequested Kind = "user.activation_requested"
	KindPromptSubmitted     Kind = "user.prompt_submitted"
	KindStopRequested       Kind = "user.stop_requested"
)

// ActivationSource tells where an activation came from.
type ActivationSource string

const (
	SourceUser     ActivationSource = "user"
	SourceRelisten ActivationSource = "relisten"
)

// ActivationRequested asks the assistant to start listening.
type ActivationRequested struct {
	Base
	Source ActivationSource
}

func NewActivationRequested(source ActivationSource) ActivationRequested {
	return ActivationRequested{Base: NewBase(KindActivationRequested), Source: source}
}

// PromptSubmitted carries text typed by the user instead of spoken.
type PromptSubmitted struct {
	Base
	Text string
}

func NewPromptSubmitted(text string) PromptSubmitted {
	return PromptSubmitted{Base: NewBase(KindPromptSubmitted), Text: text}
}

// StopRequested forces the assistant back to idle.
type StopRequested struct{ Base }

func NewStopRequested() StopRequested {
	return StopRequested{Base: NewBase(KindStopRequested)}
}
