// Package guard gates screens on the session state.
package guard

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/morningai/morningai/internal/session"
)

// Outcome is what a protected screen should do
type Outcome int

const (
	ShowLoading Outcome = iota
	Render
	RedirectLogin
)

func (o Outcome) String() string {
	switch o {
	case ShowLoading:
		return "show_loading"
	case Render:
		return "render"
	case RedirectLogin:
		return "redirect_login"
	default:
		return "unknown"
	}
}

// ErrLoginRequired is returned by Require when there is no usable session
var ErrLoginRequired = errors.New("not logged in. Please run 'morningai login' first")

// Decide maps a session state to the protected screen's outcome
func Decide(state session.State) Outcome {
	switch state {
	case session.Verifying:
		return ShowLoading
	case session.LoggedIn:
		return Render
	default:
		return RedirectLogin
	}
}

// Require returns a cobra PreRunE that verifies the stored token before the
// command runs. manager is resolved lazily so flags such as --server apply.
func Require(manager func(cmd *cobra.Command) (*session.Manager, error)) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		m, err := manager(cmd)
		if err != nil {
			return err
		}

		if Decide(m.State()) == ShowLoading {
			if err := m.Start(cmd.Context()); err != nil && Decide(m.State()) != Render {
				return errors.Join(ErrLoginRequired, err)
			}
		}

		if Decide(m.State()) != Render {
			return ErrLoginRequired
		}
		return nil
	}
}
