// Command genguard submits generation requests through the diagnose, mitigate,
// and retry loop.
//
// generate and batch drive the orchestrator against the configured media
// service. detect is a dry run that shows which references would trigger a
// policy rejection and the ranked rewrites. stats and analyses read the
// durable history database under paths.data_dir.
package main
