package apps

import "errors"

// ErrUnknownApp is returned when a selection names an app the upstream
// does not list for this user.
var ErrUnknownApp = errors.New("unknown app")
