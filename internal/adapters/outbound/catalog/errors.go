package catalog

// TemplateNotFoundError represents a "not found" case the logic layer
// inspects through its private marker interface.
type TemplateNotFoundError struct{}

func (e *TemplateNotFoundError) Error() string {
	return "template not found"
}

func (e *TemplateNotFoundError) IsNotFound() {}

var errTemplateNotFound = &TemplateNotFoundError{}
