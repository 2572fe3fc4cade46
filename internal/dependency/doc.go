// Package dependency provides a small directed graph used to validate the
// step graphs of pipelines.
//
// Nodes are identified by a NodeID and list their outgoing edges. The graph
// answers the structural questions a loader needs before a pipeline can be
// executed: which edges point at unknown nodes, whether a cycle exists and
// which nodes are reachable from an entry node.
//
// The graph is not thread-safe; it is built once, queried and discarded.
package dependency
