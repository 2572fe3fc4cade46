// Package pipeline loads pipeline descriptions and executes their step
// graphs.
//
// A pipeline is a YAML file named after the pipeline:
//
//	# pipelines/deploy-live.yaml
//	cluster: live
//	cron: "*/10 * * * *"
//	start: probe
//	steps:
//	  - name: probe
//	    type: clusterProbe
//	    hook: https://pre.example.com/healthz
//	    timeout: 10s
//	    onSuccess: plan
//	  - name: plan
//	    type: planClusterDeployment
//	    cluster: pre
//	    onSuccess: snapshot
//	  - name: snapshot
//	    type: takeSnapshot
//	    onSuccess: apply
//	  - name: apply
//	    type: applyDeployment
//	    onFailure: rollback
//	  - name: rollback
//	    type: rollback
//	    onFailure: report
//	  - name: report
//	    type: logError
//
// Execution starts at the step named by start and follows onSuccess or
// onFailure edges until the chosen edge is empty. Loading rejects dangling
// edges, cycles and any applyDeployment step that can be reached without a
// successful planning step first.
//
// The Manager keeps the loaded pipelines, registers the ones with a cron in
// the scheduler and reloads them when the Watcher sees the directory change.
package pipeline
