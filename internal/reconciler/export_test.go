package reconciler

// Unexported helpers exposed to the external reconciler_test package.
var (
	Annotation      = annotation
	Canonical       = canonical
	ContainerImages = containerImages
	ResourceName    = resourceName
	SetAnnotation   = setAnnotation
)
