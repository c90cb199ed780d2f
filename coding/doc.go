// Package coding implements the incremental code-aggregation pipeline.
//
// The Aggregator walks an interview table in question-major order and asks a
// Classifier for the thematic codes of every non-empty (question, answer)
// cell. Codes returned for a question are folded into that question's running
// Vocabulary, and the vocabulary as it stood before each call is passed back
// to the classifier as the existing codes, so an interview's codes depend only
// on the interviews processed before it.
//
// Interviews of one question are always classified strictly one after another.
// Distinct vocabularies may be processed concurrently (see WithParallelism);
// the result is identical to a sequential run.
//
// A failing classifier call never aborts a run: the cell is recorded as a
// CellFailure and treated as having produced no codes. Retries belong to the
// classifier transport (see package llm), not to the aggregator.
package coding
