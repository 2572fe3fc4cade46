// Package domain holds the value types spacegun plans and reconciles, and the
// contracts of the collaborators it talks to (clusters, registries, artifact
// storage and notification sinks).
//
// Types in this package are plain data. They carry no behavior beyond small
// helpers such as filter matching and plan merging, and are safe to copy.
package domain
