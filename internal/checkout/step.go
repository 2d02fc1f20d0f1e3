package checkout

import "fmt"

// Step is a wizard stage. Values match the numbers shown to shoppers.
type Step int

const (
	StepBilling      Step = 1
	StepReview       Step = 2
	StepPayment      Step = 3
	StepConfirmation Step = 4
)

var (
	stepTitles  = map[Step]string{StepBilling: "Checkout", StepReview: "Review", StepPayment: "Payment", StepConfirmation: "Complete"}
	stepHeaders = map[Step]string{StepBilling: "Checkout", StepReview: "Order Summary", StepPayment: "Payment", StepConfirmation: "Order Complete"}
)

// Steps lists the wizard stages in order.
func Steps() []Step {
	return []Step{StepBilling, StepReview, StepPayment, StepConfirmation}
}

func (s Step) Valid() bool {
	return s >= StepBilling && s <= StepConfirmation
}

// Title is the short label used in the step indicator.
func (s Step) Title() string {
	return stepTitles[s]
}

// Header is the page heading for the step.
func (s Step) Header() string {
	return stepHeaders[s]
}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return fmt.Sprintf("%d:%s", int(s), s.Title())
}

func clamp(s Step) Step {
	if s < StepBilling {
		return StepBilling
	}
	if s > StepConfirmation {
		return StepConfirmation
	}
	return s
}
