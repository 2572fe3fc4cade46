// Package planner computes the image changes needed to bring a target scope
// in line with a declared source.
//
// Three planners are provided:
//
//   - ClusterPlanner compares against the same namespace in another cluster.
//   - NamespacePlanner compares against a namespace in the same or another cluster.
//   - ImagePlanner compares against a tag resolved from the image registry.
//
// Planners never mutate cluster state. Resources that cannot be planned
// (no image, absent from the source) are logged and recorded as
// diagnostics on the returned JobPlan; only tag resolution failures abort a
// planning pass.
package planner
