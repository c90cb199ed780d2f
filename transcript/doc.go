// Package transcript turns interview transcripts into an interview grid.
//
// Transcript files (plain text, markdown, HTML or PDF) are parsed to text
// by a Registry of formats keyed by file extension. An Extractor asks a
// language model to answer every questionnaire question from one
// transcript, and Build lays the answers out as a grid that interview.Load
// accepts: row 0 is the header, column 0 holds the questions and each
// further column is one transcript.
package transcript
