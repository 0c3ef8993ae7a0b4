/*
Package types defines the shared value types and collaborator interfaces
used across the PreNav engine.

Value types cover the three cache artifact kinds (CachedSession,
CachedSkeleton, PreRenderedPage), the predictor's inputs and outputs
(NavigationRecord, PredictedRoute, CommunityPattern) and the orchestrator's
NavigationState. Collaborator interfaces (Router, SessionFetcher,
PageFetcher, Renderer, PatternSource) are the injection points for the
surrounding application; each has a Func adapter so tests and callers can
supply closures.
*/
package types
