// Package ui is the terminal panel of the updater: a source selector, the
// install and update action, a status region with a text progress bar, and
// a shortcut that opens the repository page.
//
// The panel is the updater's Host. A 100 ms tick drives Poll, which redraws
// the status region and delivers the single completion notification.
package ui
