// Package services holds cross-cutting helpers shared by the generation
// clients and workflow stages: the failure taxonomy used to classify client
// errors, and context annotations carrying session, stage, and correlation
// identifiers through blocking calls.
package services
