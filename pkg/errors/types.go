package errors

import (
	"fmt"
)

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// MissingTool represents an external program that's required for syncing
// but couldn't be run.
type MissingTool struct {
	Name string
	Err  error
}

func (err MissingTool) Error() string {
	if err.Err == nil {
		return fmt.Sprintf("required tool %q is not available", err.Name)
	}
	return fmt.Sprintf("required tool %q is not available: %s", err.Name, err.Err)
}

func (err MissingTool) Unwrap() error {
	return err.Err
}

// FriendlyMessage tells the user how to fix the problem.
func (err MissingTool) FriendlyMessage() string {
	return fmt.Sprintf("%q could not be found or run. "+
		"Please install it, or point vaultsync at it with the `rclone` "+
		"config key or the VAULTSYNC_RCLONE environment variable.", err.Name)
}
