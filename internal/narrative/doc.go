// Package narrative turns a diary transcript and its emotion scores into the
// generated diary body, a short title and a line of advice.
//
// # Prompts
//
// All prompts live in prompt.go so the three generation calls stay
// consistent. The narrative is rewritten as a calm first-person monologue,
// the title is capped at 20 characters and the advice is two or three
// sentences addressed to the writer.
//
// # Post-processing
//
// Model replies are cleaned before they are stored: Han ideographs and stray
// chat-template markers are removed, empty parentheses are dropped, and the
// title keeps only its first line without quotes or trailing periods. A reply
// that is empty after cleaning is an error; there is no canned fallback text.
package narrative
