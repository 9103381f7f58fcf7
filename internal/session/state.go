package session

// State is the authentication state visible to the console surface.
type State struct {
	Authenticated bool   `json:"authenticated"`
	Initialized   bool   `json:"initialized"`
	Loading       bool   `json:"loading"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	User          *User  `json:"user,omitempty"`
}

// Event is one step in the authentication lifecycle. The concrete types
// below form a closed set folded through Reduce.
type Event interface {
	isEvent()
}

// Initialized restores state from persisted credentials at startup.
type Initialized struct {
	Authenticated bool
	User          *User
}

// LoginRequested marks a login attempt in flight.
type LoginRequested struct{}

// LoginSucceeded carries the authenticated user.
type LoginSucceeded struct {
	User *User
}

// LoginFailed carries the user-facing failure message.
type LoginFailed struct {
	Message string
}

// LoggedOut clears the authenticated state.
type LoggedOut struct{}

func (Initialized) isEvent()    {}
func (LoginRequested) isEvent() {}
func (LoginSucceeded) isEvent() {}
func (LoginFailed) isEvent()    {}
func (LoggedOut) isEvent()      {}

// Reduce folds one event into the state. It is pure: unknown inputs
// leave the state unchanged, and no event can un-initialize the state.
func Reduce(s State, e Event) State {
	switch e := e.(type) {
	case Initialized:
		s.Authenticated = e.Authenticated
		s.Initialized = true
		s.User = e.User
	case LoginRequested:
		s.Loading = true
	case LoginSucceeded:
		s.Authenticated = true
		s.Loading = false
		s.ErrorMessage = ""
		s.User = e.User
	case LoginFailed:
		s.Loading = false
		s.ErrorMessage = e.Message
		if s.ErrorMessage == "" {
			s.ErrorMessage = "login failed"
		}
	case LoggedOut:
		s.Authenticated = false
		s.User = nil
	}
	return s
}
