package engine

import "proctorly/internal/model"

// SignalKind identifies an environment signal. Adapters translate native
// event sources (browser visibility, focus, fullscreen, history navigation)
// into these; nothing platform-specific leaks into the session.
type SignalKind string

const (
	SignalVisibilityHidden  SignalKind = "visibility-hidden"
	SignalVisibilityVisible SignalKind = "visibility-visible"
	SignalBlur              SignalKind = "blur"
	SignalFocus             SignalKind = "focus"
	SignalFullscreenEntered SignalKind = "fullscreen-entered"
	SignalFullscreenExited  SignalKind = "fullscreen-exited"
	SignalNavigationAway    SignalKind = "navigation-away"
	SignalCopy              SignalKind = "copy"
	SignalPaste             SignalKind = "paste"
	SignalContextMenu       SignalKind = "context-menu"
	SignalResize            SignalKind = "resize"
	SignalDevtoolsOpen      SignalKind = "devtools-open"
	SignalNetworkOffline    SignalKind = "network-offline"
	SignalMultiMonitorHint  SignalKind = "multi-monitor-hint"
)

// Signal is one environment event delivered to the session.
type Signal struct {
	Kind SignalKind
	Meta map[string]string
}

// Environment is the single interface the session subscribes to for
// client-side signals and window control.
type Environment interface {
	// Subscribe registers a handler for signals; the returned func
	// unsubscribes it.
	Subscribe(handler func(Signal)) (unsubscribe func())

	// RequestFullscreen asks the platform for fullscreen. Platforms grant it
	// only as the direct result of a user gesture.
	RequestFullscreen() error
	ExitFullscreen()
	IsFullscreen() bool

	// ReassertLocation re-pins the current location, suppressing the
	// immediate effect of a navigation attempt.
	ReassertLocation()
	Navigate(dest string)
}

// recordOnly maps the passthrough signal kinds to their proctor event kinds.
// Hidden/visible, blur/focus, fullscreen, and navigation signals carry extra
// state-machine behavior and are handled separately.
var recordOnly = map[SignalKind]model.EventKind{
	SignalCopy:             model.EventCopy,
	SignalPaste:            model.EventPaste,
	SignalContextMenu:      model.EventContextMenu,
	SignalResize:           model.EventResize,
	SignalDevtoolsOpen:     model.EventDevtoolsOpen,
	SignalNetworkOffline:   model.EventNetworkOffline,
	SignalMultiMonitorHint: model.EventMultiMonitorHint,
}
