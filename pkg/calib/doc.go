// Package calib defines the types used by the calibration apply workflow.
// It contains:
//
//   - Entry / Set: an ordered list of parameter targets loaded from a
//     calibration sheet (.xlsx or .csv)
//   - Outcome / Result: the tagged per-parameter verdict of one write-verify
//     attempt, including prior and last-read values when available
//   - Summary: the aggregate result of applying a whole Set
//
// These types are shared between the session engines and the CLI so apply
// reports stay consistent across commands.
package calib
