package common

import "errors"

// ErrModulePaused is returned by Guard while a module is administratively
// paused.
var ErrModulePaused = errors.New("module paused")

// PauseView reports which native modules are currently paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects mutations against a paused module. A nil view or empty module
// name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
