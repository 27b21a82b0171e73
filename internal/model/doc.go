// Package model defines the data structures shared by the discovery,
// download, merge and reporting packages.
//
// The main types are:
//   - CandidateLink and Trigger: discovered links and click handles
//   - FilterPolicy: the rule deciding which links are downloaded
//   - DownloadTask and DownloadOutcome: download work and its result
//   - MergeUnit and MergeResult: merge inputs and the merge summary
//   - RunReport: the structured result of a whole run
//
// The types serialize to JSON for reports and the history database.
package model
