// Package metadata derives a structured quality record from a finished
// translation: structural statistics from the object hierarchy,
// discipline classification from element categories, and four quality
// sub-scores with threshold-driven recommendations. Extraction is
// idempotent; re-running replaces the stored record wholesale.
package metadata
