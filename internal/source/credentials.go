package source

import (
	"github.com/taskfuse/taskfuse/pkg/credstore"
)

// Credential names the bridge adapters look up in the credential store.
const (
	CredExchange  = "exchange"
	CredTimetable = "timetable"
	CredTodo      = "todo"
)

// CredentialSource supplies named bridge credentials. *credstore.Store
// satisfies it.
type CredentialSource interface {
	Get(name string) (*credstore.Credential, error)
}

// ApplyCredentials attaches the stored bridge credentials to the
// adapters. A missing credential leaves its adapter unauthenticated;
// nil adapters are skipped.
func ApplyCredentials(cs CredentialSource, mail *HTTPMailCalendar, tt *HTTPTimetable, pusher *HTTPTodoPusher) {
	if cs == nil {
		return
	}
	if mail != nil {
		if c, err := cs.Get(CredExchange); err == nil {
			mail.SetCredential(c.Username, c.Secret)
		}
	}
	if tt != nil {
		if c, err := cs.Get(CredTimetable); err == nil {
			tt.SetCredential(c.Username, c.Secret)
		}
	}
	if pusher != nil {
		if c, err := cs.Get(CredTodo); err == nil {
			pusher.SetCredential(c.Username, c.Secret)
		}
	}
}
