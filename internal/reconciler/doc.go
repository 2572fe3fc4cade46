// Package reconciler captures the deployments and batches of a ServerGroup
// as raw resources and later replays such snapshots against the live
// cluster.
//
// # Taking snapshots
//
// TakeSnapshot lists every deployment and batch of a group through a
// ResourceStore and stores them verbatim, sorted by name, together with the
// capture time.
//
// # Applying snapshots
//
// ApplySnapshot handles every snapshot entry independently:
//
//   - the live resource is missing: it is created from the snapshot with
//     server-assigned metadata removed (OutcomeCreated)
//   - the live deployment.kubernetes.io/revision annotation is greater than
//     the snapshotted one: the live resource was rolled out after the
//     snapshot and is left alone (OutcomeStaleSkip)
//   - the live spacegun.io/snapshot-timestamp annotation is newer than the
//     snapshot: a newer snapshot was applied already (OutcomeStaleSkip)
//   - the normalized live and snapshotted resources are equal: no write
//     happens (OutcomeUnchanged)
//   - otherwise the live resource is replaced (OutcomeUpdated)
//
// Normalization strips fields the API server owns (resourceVersion, uid,
// generation, creationTimestamp, selfLink, managedFields, status), the
// revision, last-applied and spacegun annotations and, when IgnoreImage is
// set, every container image.
//
// A write failure only fails its own entry (OutcomeFailed). The outcomes are
// collected in an ApplyReport which is logged to the event sink as one
// notification.
package reconciler
