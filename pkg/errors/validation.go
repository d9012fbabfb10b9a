package errors

import "regexp"

// nameRegex matches scene and observer names: a letter or digit followed by
// letters, digits, dots, dashes and underscores.
var nameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

const maxNameLength = 128

// ValidateSceneName validates a scene name. Scene names end up in cache keys
// and output file names, so they must be plain identifiers.
func ValidateSceneName(name string) error {
	if err := validateName(name); err != nil {
		return New(ErrCodeInvalidScene, "scene name %s", UserMessage(err))
	}
	return nil
}

// ValidateObserverName validates the name of an observer within a scene.
func ValidateObserverName(name string) error {
	if err := validateName(name); err != nil {
		return New(ErrCodeInvalidObserver, "observer name %s", UserMessage(err))
	}
	return nil
}

func validateName(name string) error {
	switch {
	case name == "":
		return New(ErrCodeInvalidInput, "cannot be empty")
	case len(name) > maxNameLength:
		return New(ErrCodeInvalidInput, "too long (max %d characters)", maxNameLength)
	case !nameRegex.MatchString(name):
		return New(ErrCodeInvalidInput, "contains invalid characters: %q", name)
	}
	return nil
}
