/*
Package engine assembles the navigation engine from one configuration:
router, predictor, the three caches, the orchestrator, metrics and the
optional community pattern feed, with a shared lifecycle (Start restores
the predictor snapshot and begins refreshes, Stop persists it).
*/
package engine
