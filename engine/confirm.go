package engine

// Confirmer asks the operator to approve a destructive action.
type Confirmer interface {
	Confirm(title string, details []string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(title string, details []string) (bool, error)

func (f ConfirmFunc) Confirm(title string, details []string) (bool, error) {
	return f(title, details)
}

// AutoConfirm approves everything; used for --yes.
var AutoConfirm = ConfirmFunc(func(string, []string) (bool, error) { return true, nil })

// Decline refuses everything.
var Decline = ConfirmFunc(func(string, []string) (bool, error) { return false, nil })
