// Package keywords extracts the top keywords from a feedback comment.
//
// Extraction runs in fixed steps: Unicode NFC normalisation, collapsing runs
// of three or more identical characters to two ("ㅋㅋㅋㅋ" becomes "ㅋㅋ"),
// replacing anything that is not Hangul, Latin, a digit or whitespace with a
// space, and squeezing whitespace. A normalised comment shorter than the
// configured minimum is rejected with ErrTooShort.
//
// Tokens are whitespace-separated words with common Korean particles removed
// from their tails and Latin letters case-folded. Tokens shorter than the
// minimum length or present in the stopword set are dropped. The remaining
// tokens are ranked by frequency with ties broken by first occurrence. When
// nothing survives filtering Extract returns ErrNoTokens.
package keywords
