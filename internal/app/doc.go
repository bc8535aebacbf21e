// Package app runs the vote boxes.
//
// A Widget owns one box per feed item. Each box fetches the site's vote
// summary, renders masked or revealed tallies into a domain.BoxView, runs a
// countdown over the vote window and re-polls the summary in the background.
// Boxes reach the site and live subscribers only through domain interfaces.
package app
