// Package botdetect scores client interaction telemetry for automation. Scoring is pure
// arithmetic over the submitted sample; it consults no store and keeps no state. The
// engine decides what to do with the score.
package botdetect
